// Package tracker is the page-view tracking engine.
//
// A Tracker moves through three states: Uninitialized, Initialized and
// Destroyed. Initialize builds a session manager, an event store and a
// delivery pipeline; Destroy stops delivery and releases them. A destroyed
// tracker can be initialized again, which starts a fresh lifetime and picks
// up any events left in the offline queue.
//
// TrackPage only appends to the local store and wakes the delivery loop.
// Delivery failures are retried in the background and never reach the
// caller; an event that exhausts its retry attempts is dropped and logged.
//
// Example usage:
//
//	t := tracker.New(tracker.WithLogger(log))
//	if err := t.Initialize(tracker.NewConfig(devToken, false, true, 3)); err != nil {
//	    return err
//	}
//	defer t.Destroy()
//
//	_ = t.TrackPage("home")
package tracker
