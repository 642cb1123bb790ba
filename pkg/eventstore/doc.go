// Package eventstore holds tracked page events until the collector accepts them.
//
// Invariants:
// - Events are handed out in insertion (FIFO) order.
// - Every mutation is serialized by one mutex that is never held across network I/O.
// - In durable mode each accepted event is written to sqlite before Append returns.
// - Delivered events and events that exhausted their retries are removed permanently.
// - After a restart, events left InFlight are treated as Pending again.
//
// Usage:
//
//	store, _ := eventstore.Open(eventstore.Options{Durable: true, Path: "/data/queue.db", MaxAttempts: 3})
//	defer store.Close()
//	_ = store.Append(eventstore.NewEvent("session-1", "home", time.Now()))
//	batch, _ := store.PendingBatch(20)
package eventstore
