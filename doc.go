// Package livefeed provides the realtime synchronization subsystem of the
// planline application: a client-side component that maintains a single
// multiplexed subscription to the backing store's row-change notification
// stream, fans the changes out to per-table and per-prefix observers, and
// manages reconnection with capped exponential backoff.
//
// The Bus owns at most one logical channel on the transport at a time. Raw
// change payloads are decoded into immutable Event values and republished
// on an internal broadcast; payloads that do not carry a table name are
// expected traffic noise and dropped without error.
//
//	bus := livefeed.NewBus(transport)
//	gate := livefeed.NewGate(bus)
//	gate.Set(&livefeed.Session{UserID: "u123"}) // connects
//
// Consumers observe filtered views of the broadcast:
//
//	s := bus.ObserveTable("tasks")
//	for e := range s.C() { ... }
//
// or register a debounced refresh callback over a set of tables:
//
//	w := bus.Watch(ctx, reloadBoard, livefeed.WithTables("tasks", "projects"))
//	defer w.Stop()
//
// Transport failures never surface to callers. The Bus funnels them into
// its reconnection policy, which retries with exponential backoff (5s base,
// 1.5x per attempt, 30s cap) and gives up after 10 consecutive failures;
// after that the subsystem stays parked until the Gate fires again. The
// application keeps functioning via on-demand fetches, so callbacks passed
// to Watch must be idempotent "reload my data" style functions.
package livefeed
