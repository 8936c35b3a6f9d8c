package livefeed

import "time"

const defaultObserverBuffer = 64

// BusOption defines a functional option that configures a Bus.
type BusOption func(*Bus)

// WithObserverBuffer provides an option to set the per-observer event
// buffer size. An observer that stops draining its buffer misses
// notifications rather than blocking the Bus.
func WithObserverBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithSessionCheck provides an option to set the session probe consulted
// before a scheduled reconnection attempt fires. NewGate overrides it.
func WithSessionCheck(fn func() bool) BusOption {
	return func(b *Bus) {
		b.sessionOK = fn
	}
}

// DefaultDebounce is the quiet period a Watcher waits for before invoking
// its refresh callback.
const DefaultDebounce = 300 * time.Millisecond

type watchConfig struct {
	tables   []string
	prefixes []string
	debounce time.Duration
}

// WatchOption defines a functional option that configures a Watcher.
type WatchOption func(*watchConfig)

// WithTables provides an option to watch tables by exact name.
func WithTables(names ...string) WatchOption {
	return func(c *watchConfig) {
		c.tables = append(c.tables, names...)
	}
}

// WithPrefixes provides an option to watch all tables whose name starts
// with any of the given prefixes.
func WithPrefixes(prefixes ...string) WatchOption {
	return func(c *watchConfig) {
		c.prefixes = append(c.prefixes, prefixes...)
	}
}

// WithDebounce provides an option to override the debounce interval.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}
