// Package service contains the application services that sit between the
// HTTP API and the storage and event layers.
//
// The Dispatcher turns a job submission into at most one pending job per
// dedup key and publishes a work item for every job it creates.
package service
