// Package transport is the HTTPS client for the activity collector.
//
// Batches are posted to {endpoint}/actifity/claim as
//
//	{"events":[{"eventId":"...","epochtime":1700000000,"pageName":"home","sessionId":"..."}]}
//
// with the developer token as a bearer credential. epochtime is in seconds.
// {endpoint}/activity/check reports whether the collector currently wants
// events at all.
package transport
