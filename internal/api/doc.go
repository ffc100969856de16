// Package api exposes generation jobs over HTTP. Clients dispatch a job with
// POST /api/jobs and poll GET /api/jobs/{id} until it reaches a terminal
// status. Handlers translate service errors into status codes and never echo
// internal error text.
package api
