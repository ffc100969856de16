// Package client is a small HTTP client for the jobs API, used by jobctl and
// by the poller's HTTP status source.
package client
