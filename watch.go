package livefeed

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/planline/livefeed/internal/metrics"
)

// Watcher merges a set of table and prefix streams into a single debounced
// refresh signal. Bursts of changes (a multi-row batch insert, a reconnect
// replay) coalesce into one callback invocation after the quiet period.
//
// The callback receives no event payload; it is expected to re-fetch its
// own state and must be idempotent, since coalescing guarantees at most
// one call per burst but never exactly-once across the watcher's lifetime.
type Watcher struct {
	streams  []*Stream
	stopOnce sync.Once
	done     chan struct{}
}

// Watch subscribes refresh to changes on the configured tables and
// prefixes, debounced by DefaultDebounce unless overridden. With zero
// tables and zero prefixes it performs no subscription at all and returns
// an inert Watcher.
//
// Cancelling ctx or calling Stop tears down all underlying streams
// together.
func (b *Bus) Watch(ctx context.Context, refresh func(context.Context), opts ...WatchOption) *Watcher {
	cfg := watchConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := &Watcher{done: make(chan struct{})}
	if len(cfg.tables) == 0 && len(cfg.prefixes) == 0 {
		close(w.done)
		return w
	}

	for _, name := range cfg.tables {
		w.streams = append(w.streams, b.ObserveTable(name))
	}
	for _, prefix := range cfg.prefixes {
		w.streams = append(w.streams, b.ObservePrefix(prefix))
	}

	merged := make(chan Event)
	var wg sync.WaitGroup
	for _, s := range w.streams {
		wg.Add(1)
		go func(s *Stream) {
			defer wg.Done()
			for e := range s.C() {
				select {
				case merged <- e:
				case <-ctx.Done():
					return
				}
			}
		}(s)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	go w.loop(ctx, merged, cfg.debounce, refresh)
	return w
}

func (w *Watcher) loop(ctx context.Context, merged <-chan Event, debounce time.Duration, refresh func(context.Context)) {
	defer close(w.done)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			w.stopStreams()
			return

		case _, ok := <-merged:
			if !ok {
				return
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.fire(ctx, refresh)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, refresh func(context.Context)) {
	ctx, span := otel.Tracer("livefeed").Start(ctx, "livefeed.refresh")
	defer span.End()

	metrics.WatcherRefreshes.Inc()
	refresh(ctx)
}

func (w *Watcher) stopStreams() {
	w.stopOnce.Do(func() {
		for _, s := range w.streams {
			s.Stop()
		}
	})
}

// Stop tears down every underlying stream together and waits for any
// in-flight refresh to finish. Idempotent.
func (w *Watcher) Stop() {
	w.stopStreams()
	<-w.done
}
