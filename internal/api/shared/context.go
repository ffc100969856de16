package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped values set by the API layer.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// ClientSubjectKey is the key for the authenticated client's token subject
	ClientSubjectKey ContextKey = "clientSubject"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters

	// TraceIDHeader carries a caller-supplied trace ID and echoes the one in use.
	TraceIDHeader = "X-Trace-ID"
)

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// SetTraceID adds a newly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, generateTraceID())
}

// WithTraceID adds traceID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// ValidTraceID reports whether a caller-supplied trace ID is safe to adopt.
func ValidTraceID(id string) bool {
	return traceIDPattern.MatchString(id)
}

// WithClientSubject records the authenticated client in the context.
func WithClientSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ClientSubjectKey, subject)
}

// GetClientSubject returns the authenticated client, if any.
func GetClientSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ClientSubjectKey).(string)
	return subject, ok && subject != ""
}

// generateTraceID creates a random 32-character hex trace ID. A random UUID
// is used if crypto/rand fails.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		id := uuid.New()
		return hex.EncodeToString(id[:])
	}
	return hex.EncodeToString(b)
}
