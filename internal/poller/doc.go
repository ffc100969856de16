// Package poller follows a generation job until it settles.
//
// A Poller queries a Source once per tick, reports progress snapshots to a
// callback and stops on the first terminal status, on a permanent source
// error, when the context is cancelled, or after MaxAttempts queries. A
// timeout only ends the polling; the job keeps running and its result stays
// readable through the status API.
package poller
