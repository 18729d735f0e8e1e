// Package logging configures slog output for recitald and provides
// shared attribute helpers so subsystems log with consistent keys.
package logging
