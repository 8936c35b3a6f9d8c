package livefeed

import (
	"fmt"
	"time"
)

// Event is the livefeed event. It is an immutable notification that a row
// of a backing table changed. It carries no row data beyond the record id;
// consumers are expected to re-fetch whatever state they care about.
type Event struct {
	// Table is the name of the affected table. Never empty.
	Table string

	// Type is the kind of mutation observed.
	Type EventType

	// RecordID is the id of the affected row, taken from the new row if it
	// exposes an id field, else from the old row. Empty if neither did.
	RecordID string

	// Time is the local receive time stamped at decode.
	Time time.Time
}

// EventType enumerates the mutation kinds reported by the backing store.
type EventType int

const (
	EventInsert EventType = iota + 1
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "INSERT"
	case EventUpdate:
		return "UPDATE"
	case EventDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Payload is the raw, transport-specific description of a single row
// mutation, before decoding. The Bus only reads the table name, the
// mutation type and the id field of the new/old rows; everything else in
// the rows is opaque to this package.
type Payload struct {
	Table string
	Type  string // INSERT | UPDATE | DELETE
	New   map[string]any
	Old   map[string]any
}

// ChannelStatus is reported asynchronously by a Channel's subscribe
// handshake and afterwards whenever the channel's health changes.
type ChannelStatus int

const (
	StatusSubscribed ChannelStatus = iota + 1
	StatusChannelError
	StatusTimedOut
	StatusClosed
)

func (s ChannelStatus) String() string {
	switch s {
	case StatusSubscribed:
		return "SUBSCRIBED"
	case StatusChannelError:
		return "CHANNEL_ERROR"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ChannelState is the Bus's own connection status. It is exposed for
// diagnostics only; consumers should not branch on it.
type ChannelState int

const (
	StateClosed ChannelState = iota
	StateConnecting
	StateOpen
	StateErroring
)

func (s ChannelState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErroring:
		return "erroring"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Channel is one logical subscription to the backing store's change
// notification stream. Implementations must invoke the registered
// callbacks asynchronously; calling them from inside OnChange or
// Subscribe deadlocks the Bus.
type Channel interface {
	// OnChange registers the callback for raw change payloads, filtered
	// server-side to all events on the default schema.
	OnChange(fn func(Payload))

	// Subscribe registers the status callback and initiates the subscribe
	// handshake. The handshake outcome and later health changes are
	// reported through fn.
	Subscribe(fn func(ChannelStatus))
}

// Transport is the backing store's change-notification primitive. The Bus
// treats it as an opaque capability set and never interprets wire formats
// itself.
type Transport interface {
	// OpenChannel creates a new named channel. It must not block.
	OpenChannel(topic string) Channel

	// RemoveChannel releases a channel, removing its subscription from the
	// underlying transport. Best effort, fire and forget.
	RemoveChannel(ch Channel)
}

// decode validates that a raw payload carries the minimal required shape
// and converts it into an Event. The second return is false for payloads
// that are not decodable: no table name, or a mutation type outside the
// closed INSERT/UPDATE/DELETE set. Those are expected traffic noise, not
// faults.
func decode(p Payload) (Event, bool) {
	if p.Table == "" {
		return Event{}, false
	}

	var typ EventType
	switch p.Type {
	case "INSERT":
		typ = EventInsert
	case "UPDATE":
		typ = EventUpdate
	case "DELETE":
		typ = EventDelete
	default:
		return Event{}, false
	}

	return Event{
		Table:    p.Table,
		Type:     typ,
		RecordID: recordID(p),
		Time:     time.Now(),
	}, true
}

// recordID extracts the affected row's id: new row first, then old row.
// The hosted platform emits numeric ids for some tables, so non-string
// ids are stringified.
func recordID(p Payload) string {
	if v, ok := p.New["id"]; ok && v != nil {
		return stringID(v)
	}
	if v, ok := p.Old["id"]; ok && v != nil {
		return stringID(v)
	}
	return ""
}

func stringID(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
