// Package logging defines the structured-logging interface used by the
// denauth services and its slog-backed implementation.
//
// Callers must never pass secrets as attributes: plaintext passwords,
// tokens, validators, MACs and key material stay out of log records.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "token issued", "kind", "remember", "user_id", 42)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)

	// Warn is for rejected input that is not a server fault, such as an
	// unknown token.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
