// Package session owns the connection to the messaging network.
//
// A Transport builds Sessions; a Session emits Batches of Events. The
// Lifecycle keeps exactly one Session alive at a time, reconnecting with
// capped exponential backoff, and feeds every Batch through a Router that
// isolates handler failures from each other.
//
// Lifecycle state (reconnect attempts, the current handler table) is owned by
// the goroutine running Lifecycle.Run. Other goroutines only read it through
// the mutex-guarded accessors.
package session
