// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the job orchestration core, so the dispatcher and executor remain
// independent of specific database technologies or persistence details.
package store
