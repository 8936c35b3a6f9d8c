package livefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliverInsert(ch *fakeChannel, table, id string) {
	ch.deliverChange(Payload{Table: table, Type: "INSERT", New: map[string]any{"id": id}})
}

func TestObserveFiltering(t *testing.T) {
	stubTimers(t)
	tr := newFakeTransport()
	b := NewBus(tr)

	tasks := b.ObserveTable("tasks")
	docs := b.ObservePrefix("database_")

	b.Connect()
	ch := tr.last()
	ch.deliverStatus(StatusSubscribed)

	deliverInsert(ch, "tasks", "t1")
	deliverInsert(ch, "documents", "d1")
	deliverInsert(ch, "database_abc", "r1")
	deliverInsert(ch, "projects", "p1")
	deliverInsert(ch, "tasks", "t2")

	// Exact-name view yields only tasks events, in delivery order.
	e := <-tasks.C()
	assert.Equal(t, "tasks", e.Table)
	assert.Equal(t, "t1", e.RecordID)
	e = <-tasks.C()
	assert.Equal(t, "t2", e.RecordID)
	require.Empty(t, tasks.C())

	// Prefix view yields only the database_abc event.
	e = <-docs.C()
	assert.Equal(t, "database_abc", e.Table)
	assert.Equal(t, "r1", e.RecordID)
	require.Empty(t, docs.C())
}

func TestIndependentObservers(t *testing.T) {
	stubTimers(t)
	tr := newFakeTransport()
	b := NewBus(tr)

	a := b.ObserveTable("projects")
	c := b.ObserveTable("projects")

	b.Connect()
	ch := tr.last()
	ch.deliverStatus(StatusSubscribed)
	deliverInsert(ch, "projects", "p1")

	// Both consumers hold independent views over the same broadcast.
	assert.Equal(t, "p1", (<-a.C()).RecordID)
	assert.Equal(t, "p1", (<-c.C()).RecordID)
}

func TestStreamStop(t *testing.T) {
	stubTimers(t)
	tr := newFakeTransport()
	b := NewBus(tr)

	s := b.ObserveTable("tasks")
	b.Connect()
	ch := tr.last()
	ch.deliverStatus(StatusSubscribed)

	s.Stop()
	s.Stop() // idempotent

	// Delivery after Stop does not publish to the closed stream.
	deliverInsert(ch, "tasks", "t1")

	_, ok := <-s.C()
	assert.False(t, ok, "stopped stream channel should be closed")

	b.mu.Lock()
	assert.Empty(t, b.observers)
	b.mu.Unlock()
}

func TestObserverOverflowDoesNotBlock(t *testing.T) {
	stubTimers(t)
	tr := newFakeTransport()
	b := NewBus(tr, WithObserverBuffer(2))

	s := b.ObserveTable("tasks")
	b.Connect()
	ch := tr.last()
	ch.deliverStatus(StatusSubscribed)

	for i := 0; i < 5; i++ {
		deliverInsert(ch, "tasks", "t")
	}

	// The first two fit the buffer, the rest were dropped, and delivery
	// never blocked.
	assert.Len(t, s.C(), 2)
}
