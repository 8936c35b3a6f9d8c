package livefeed

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/planline/livefeed/internal/metrics"
)

// Reconnection policy constants. Attempt n is retried after
// min(base * mult^n, cap); after maxAttempts consecutive failures the Bus
// parks until the Gate fires again.
const (
	backoffBase = 5 * time.Second
	backoffMult = 1.5
	backoffCap  = 30 * time.Second
	maxAttempts = 10
)

// afterFunc is aliased for testing.
var afterFunc = time.AfterFunc

// delayForAttempt returns the capped exponential backoff delay for the
// n'th consecutive reconnection attempt.
func delayForAttempt(n int) time.Duration {
	d := time.Duration(float64(backoffBase) * math.Pow(backoffMult, float64(n)))
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// scheduleRetryLocked schedules a one-shot reconnection attempt, unless
// the attempt budget is exhausted. Exhaustion is checked here, at failure
// time, not when the timer fires.
func (b *Bus) scheduleRetryLocked() {
	if b.attempts >= maxAttempts {
		// Terminal for this session's channel. Realtime updates stop; the
		// application still functions via on-demand fetches.
		metrics.ReconnectsExhausted.Inc()
		log.Error(context.Background(), errors.New("livefeed: reconnect attempts exhausted",
			j.KV("attempts", b.attempts)))
		b.setStateLocked(StateClosed)
		return
	}
	if b.retry != nil {
		return
	}

	delay := delayForAttempt(b.attempts)
	b.retrySeq++
	seq := b.retrySeq
	b.retry = afterFunc(delay, func() { b.retryFire(seq) })

	metrics.ReconnectsScheduled.Inc()
	log.Info(context.Background(), "livefeed: reconnect scheduled", j.MKS{
		"attempt": strconv.Itoa(b.attempts),
		"delay":   delay.String(),
	})
}

// retryFire runs when a scheduled reconnection timer fires. The sequence
// guard drops timers that were cancelled or superseded after their
// callback was already committed to run. The session is re-checked here
// because the auth signal can change between scheduling and firing.
func (b *Bus) retryFire(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retry == nil || seq != b.retrySeq {
		return
	}
	b.retry = nil
	b.attempts++

	if !b.sessionOK() {
		log.Info(context.Background(), "livefeed: skipping reconnect, no session")
		b.setStateLocked(StateClosed)
		return
	}
	b.connectLocked()
}

func (b *Bus) cancelRetryLocked() {
	if b.retry == nil {
		return
	}
	b.retry.Stop()
	b.retry = nil
}
