// Package logging provides the structured logger used across kvbridge.
//
// It wraps log/slog with the configured level, text or JSON output, and
// default service/version attributes on every record.
package logging
