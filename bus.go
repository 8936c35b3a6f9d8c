package livefeed

import (
	"context"
	"sync"
	"time"

	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/planline/livefeed/internal/metrics"
)

// defaultTopic subscribes to all change events on the default schema.
const defaultTopic = "realtime:public"

// Bus owns exactly one logical subscription to the backing store's change
// notification stream. It decodes incoming payloads and republishes them
// as Events to any number of filtered observers.
//
// Connect and Disconnect are idempotent and never fail observably; all
// transport failures funnel into the reconnection policy in backoff.go.
// The zero value is not usable, construct with NewBus.
type Bus struct {
	transport Transport

	mu        sync.Mutex
	channel   Channel
	gen       uint64 // bumped whenever the current channel is superseded
	state     ChannelState
	attempts  int
	retry     *time.Timer
	retrySeq  uint64
	sessionOK func() bool
	observers map[*Stream]struct{}
	buffer    int
}

// NewBus returns a Bus over the given transport. The application root
// should own a single Bus instance and inject it into consumers.
func NewBus(t Transport, opts ...BusOption) *Bus {
	b := &Bus{
		transport: t,
		sessionOK: func() bool { return true },
		observers: make(map[*Stream]struct{}),
		buffer:    defaultObserverBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect opens the channel if none is open or opening. Calling it while a
// channel exists is a no-op. Any pending scheduled reconnection is
// superseded.
func (b *Bus) Connect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectLocked()
}

func (b *Bus) connectLocked() {
	if b.channel != nil {
		return
	}

	b.cancelRetryLocked()

	b.gen++
	gen := b.gen
	b.setStateLocked(StateConnecting)
	metrics.ConnectAttempts.Inc()
	log.Info(context.Background(), "livefeed: connecting", j.KV("attempt", b.attempts))

	ch := b.transport.OpenChannel(defaultTopic)
	b.channel = ch
	ch.OnChange(func(p Payload) { b.handleChange(gen, p) })
	ch.Subscribe(func(s ChannelStatus) { b.handleStatus(gen, s) })
}

// Disconnect cancels any pending reconnection, resets the attempt count
// and releases the channel if one exists. Idempotent.
func (b *Bus) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelRetryLocked()
	b.attempts = 0

	if b.channel != nil {
		b.gen++ // supersede any in-flight callbacks
		b.transport.RemoveChannel(b.channel)
		b.channel = nil
	}
	b.setStateLocked(StateClosed)
}

// State returns the Bus's current connection status, for diagnostics.
func (b *Bus) State() ChannelState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// setSessionCheck is wired by NewGate so that a reconnection timer firing
// after the session ended does not reopen the channel.
func (b *Bus) setSessionCheck(fn func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionOK = fn
}

func (b *Bus) setStateLocked(s ChannelState) {
	b.state = s
	metrics.ChannelState.Set(float64(s))
}

// handleChange decodes a raw payload and publishes the resulting event to
// every matching observer, preserving transport delivery order. Payloads
// from a superseded channel are ignored.
func (b *Bus) handleChange(gen uint64, p Payload) {
	e, ok := decode(p)
	if !ok {
		metrics.PayloadsDropped.Inc()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		metrics.StaleCallbacks.Inc()
		return
	}

	for s := range b.observers {
		if !s.match(e.Table) {
			continue
		}
		select {
		case s.c <- e:
		default:
			// Observer not draining; the refresh-callback contract makes
			// missed notifications safe to drop.
			metrics.ObserverOverflows.Inc()
		}
	}
	metrics.EventsPublished.WithLabelValues(e.Type.String()).Inc()
}

// handleStatus reacts to the subscribe handshake outcome. Statuses from a
// superseded channel are ignored.
func (b *Bus) handleStatus(gen uint64, s ChannelStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.channel == nil {
		metrics.StaleCallbacks.Inc()
		return
	}

	switch s {
	case StatusSubscribed:
		b.attempts = 0
		b.setStateLocked(StateOpen)
		log.Info(context.Background(), "livefeed: channel subscribed")

	case StatusChannelError, StatusTimedOut, StatusClosed:
		log.Info(context.Background(), "livefeed: channel failure",
			j.KV("status", s.String()))
		b.gen++
		b.transport.RemoveChannel(b.channel)
		b.channel = nil
		b.setStateLocked(StateErroring)
		b.scheduleRetryLocked()
	}
}
