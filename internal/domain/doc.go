// Package domain contains the core entities of the job orchestration layer,
// most importantly GenerationResult, the persistent lifecycle record of a
// generation job, and DedupKey, the tuple used to detect in-flight duplicates.
// It is independent of any storage or transport.
package domain
