// Package events provides the work-item types and bus interfaces that connect
// the job dispatcher to the executor runtime.
//
// The dispatcher emits a JobEvent for every job it creates; the executor side
// registers EventHandlers. InMemoryEventEmitter delivers events inside one
// process. The Redis Streams bus in internal/platform/redisbus implements the
// same EventEmitter interface for deployments where API and workers run as
// separate processes.
package events
