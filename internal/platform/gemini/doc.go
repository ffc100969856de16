// Package gemini implements generation.Generator with Google's Gemini API
// through the google.golang.org/genai client.
//
// Calls that fail with a transport or API error are retried with exponential
// backoff and jitter. Responses blocked by safety filters or without any text
// are permanent failures and are returned immediately.
package gemini
