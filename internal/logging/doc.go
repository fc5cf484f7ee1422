// Package logging centralizes structured logger construction for the daemon
// and CLI. It wraps log/slog with a human-readable console handler, a JSON
// handler for machine consumption, standardized field keys, and helpers that
// derive per-document attributes from a context.
package logging
