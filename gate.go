package livefeed

import (
	"context"
	"sync"
	"sync/atomic"
)

// Session identifies an authenticated user session. The Gate only cares
// about presence; the user id is carried for logging by the application.
type Session struct {
	UserID string
}

// Gate binds the Bus's connect/disconnect lifecycle to the application's
// authentication signal, so the subsystem never holds an open channel for
// an unauthenticated context. It is the sole owner of Connect/Disconnect
// calls from outside the Bus; no other component should issue them.
type Gate struct {
	bus    *Bus
	active atomic.Bool

	mu      sync.Mutex
	present bool
}

// NewGate returns a Gate driving the given Bus. It also installs itself as
// the Bus's session probe, so a reconnection timer that fires after the
// session ended does not reopen the channel.
func NewGate(bus *Bus) *Gate {
	g := &Gate{bus: bus}
	bus.setSessionCheck(g.Active)
	return g
}

// Set records the current session. Register it as the change callback on
// the application's auth observable and call it with every new value; only
// presence transitions touch the Bus.
func (g *Gate) Set(s *Session) {
	present := s != nil

	g.mu.Lock()
	was := g.present
	g.present = present
	g.active.Store(present)
	g.mu.Unlock()

	if present == was {
		return
	}
	if present {
		g.bus.Connect()
	} else {
		g.bus.Disconnect()
	}
}

// Active reports whether a session is currently present.
func (g *Gate) Active() bool {
	return g.active.Load()
}

// Run consumes session values until ctx is done or the channel closes,
// feeding each into Set. On ctx cancellation the Bus is disconnected.
// It is a convenience for applications that expose their auth state as a
// channel; it always blocks, so run it on its own goroutine.
func (g *Gate) Run(ctx context.Context, sessions <-chan *Session) {
	for {
		select {
		case <-ctx.Done():
			g.Set(nil)
			return
		case s, ok := <-sessions:
			if !ok {
				return
			}
			g.Set(s)
		}
	}
}
