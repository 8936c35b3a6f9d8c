// Package mock provides an in-memory Transport for testing livefeed
// consumers without a realtime backend.
package mock

import (
	"sync"

	"github.com/planline/livefeed"
)

var (
	_ livefeed.Transport = (*Transport)(nil)
	_ livefeed.Channel   = (*Channel)(nil)
)

// Transport is a mock implementation of livefeed.Transport. It records
// channel opens and removals and lets tests drive payload and status
// callbacks by hand.
type Transport struct {
	mu      sync.Mutex
	opened  []*Channel
	removed []*Channel
}

// NewTransport returns a new mock transport.
func NewTransport() *Transport {
	return new(Transport)
}

func (t *Transport) OpenChannel(topic string) livefeed.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := &Channel{Topic: topic}
	t.opened = append(t.opened, ch)
	return ch
}

func (t *Transport) RemoveChannel(ch livefeed.Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := ch.(*Channel); ok {
		t.removed = append(t.removed, c)
	}
}

// OpenCount returns the number of channels opened so far.
func (t *Transport) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opened)
}

// RemovedCount returns the number of channels removed so far.
func (t *Transport) RemovedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.removed)
}

// Last returns the most recently opened channel, or nil.
func (t *Transport) Last() *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.opened) == 0 {
		return nil
	}
	return t.opened[len(t.opened)-1]
}

// Channel is a mock implementation of livefeed.Channel.
type Channel struct {
	Topic string

	mu       sync.Mutex
	onChange func(livefeed.Payload)
	onStatus func(livefeed.ChannelStatus)
}

func (c *Channel) OnChange(fn func(livefeed.Payload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *Channel) Subscribe(fn func(livefeed.ChannelStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// DeliverChange invokes the registered payload callback, simulating the
// transport pushing a raw change notification.
func (c *Channel) DeliverChange(p livefeed.Payload) {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

// DeliverStatus invokes the registered status callback, simulating a
// handshake or health report from the transport.
func (c *Channel) DeliverStatus(s livefeed.ChannelStatus) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
