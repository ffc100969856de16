// Package redisbus carries job events over Redis Streams and caches step
// checkpoints in Redis hashes.
//
// Publisher appends one entry per event with XADD. Consumer reads through a
// consumer group and acknowledges an entry only after its handler returns
// nil, so an entry whose execution crashed or failed transiently stays in the
// group's pending list. Idle pending entries are reclaimed with XAUTOCLAIM and
// handed to the handler again, which gives at-least-once delivery across
// executor processes.
package redisbus
