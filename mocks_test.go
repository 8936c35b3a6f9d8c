package livefeed

import (
	"sync"
	"testing"
	"time"
)

func newFakeTransport() *fakeTransport {
	return new(fakeTransport)
}

type fakeTransport struct {
	mu      sync.Mutex
	opened  []*fakeChannel
	removed []Channel
}

func (t *fakeTransport) OpenChannel(topic string) Channel {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := &fakeChannel{topic: topic}
	t.opened = append(t.opened, ch)
	return ch
}

func (t *fakeTransport) RemoveChannel(ch Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removed = append(t.removed, ch)
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opened)
}

func (t *fakeTransport) removedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.removed)
}

func (t *fakeTransport) last() *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.opened) == 0 {
		return nil
	}
	return t.opened[len(t.opened)-1]
}

type fakeChannel struct {
	topic string

	mu       sync.Mutex
	changeFn func(Payload)
	statusFn func(ChannelStatus)
}

func (c *fakeChannel) OnChange(fn func(Payload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changeFn = fn
}

func (c *fakeChannel) Subscribe(fn func(ChannelStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusFn = fn
}

func (c *fakeChannel) deliverChange(p Payload) {
	c.mu.Lock()
	fn := c.changeFn
	c.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (c *fakeChannel) deliverStatus(s ChannelStatus) {
	c.mu.Lock()
	fn := c.statusFn
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// stubTimers replaces afterFunc with a recorder so tests control when
// scheduled reconnection attempts fire.
func stubTimers(t *testing.T) *timerStub {
	t.Helper()

	s := new(timerStub)
	old := afterFunc
	afterFunc = func(d time.Duration, fn func()) *time.Timer {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.delays = append(s.delays, d)
		s.fns = append(s.fns, fn)
		return time.NewTimer(time.Hour)
	}
	t.Cleanup(func() { afterFunc = old })
	return s
}

type timerStub struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (s *timerStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

func (s *timerStub) delay(i int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delays[i]
}

func (s *timerStub) fire(i int) {
	s.mu.Lock()
	fn := s.fns[i]
	s.mu.Unlock()
	fn()
}

func (s *timerStub) fireLast() {
	s.mu.Lock()
	fn := s.fns[len(s.fns)-1]
	s.mu.Unlock()
	fn()
}
