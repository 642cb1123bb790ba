// Package delivery drains the event store to the collector.
//
// A Pipeline runs one background loop per tracker lifetime. The loop wakes on
// Notify, on a periodic tick, and on Stop. Each cycle checks out batches in
// FIFO order until the store is empty or a send fails. A failed batch has one
// attempt counted against every event in it, and the loop then sleeps for an
// exponential backoff seeded by the most-retried event of that batch.
//
// A credential rejection from the collector returns the batch to the queue
// without counting an attempt and pauses delivery for the rest of the
// pipeline's life.
//
// Example usage:
//
//	p := delivery.New(store, client, delivery.DefaultConfig())
//	p.Start()
//	defer p.Stop()
//	p.Notify()
package delivery
