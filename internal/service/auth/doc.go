// Package auth issues and validates the HS256 bearer tokens that job clients
// present to the HTTP API. Authentication is optional: the server only
// installs it when a signing secret is configured.
package auth
