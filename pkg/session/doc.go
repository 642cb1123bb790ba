// Package session owns the active tracking session identifier.
//
// Invariants:
// - At most one session id is active at a time.
// - Current never returns an empty id; a cleared session is regenerated lazily.
// - Replacing or clearing the id never rewrites events that were already queued.
//
// Usage:
//
//	mgr := session.NewManager(logger)
//	id := mgr.Current()
//	_ = mgr.Set("user-session-id")
//	mgr.Clear()
package session
