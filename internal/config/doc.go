// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to application settings needed by different components while keeping
// configuration details separate from business logic.
//
// Environment variables use the GENJOBS_ prefix with dots replaced by
// underscores, e.g. GENJOBS_DATABASE_URL or GENJOBS_RUNNER_STALE_JOB_AGE.
package config
