package livefeed

import "strings"

// Stream is an independent filtered view over the Bus's broadcast of
// change events. Filtering is stateless per event and preserves the order
// in which the transport delivered the underlying payloads.
//
// A Stream is safe to read from a single goroutine. Stop releases it;
// reading a stopped Stream yields closed-channel semantics.
type Stream struct {
	bus   *Bus
	match func(table string) bool
	c     chan Event
}

// ObserveTable returns a Stream of events whose table equals name exactly.
func (b *Bus) ObserveTable(name string) *Stream {
	return b.observe(func(table string) bool { return table == name })
}

// ObservePrefix returns a Stream of events whose table starts with prefix.
// Used for the per-document tables the application provisions on demand.
func (b *Bus) ObservePrefix(prefix string) *Stream {
	return b.observe(func(table string) bool { return strings.HasPrefix(table, prefix) })
}

func (b *Bus) observe(match func(string) bool) *Stream {
	s := &Stream{
		bus:   b,
		match: match,
		c:     make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[s] = struct{}{}
	return s
}

// C returns the stream's event channel. It is closed by Stop.
func (s *Stream) C() <-chan Event {
	return s.c
}

// Stop removes the stream from the Bus and closes its channel. Idempotent.
func (s *Stream) Stop() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.observers[s]; !ok {
		return
	}
	delete(s.bus.observers, s)
	close(s.c)
}
