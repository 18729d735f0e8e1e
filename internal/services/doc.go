// Package services defines the shared error taxonomy used across the
// recital backend: sentinel markers, wrapping helpers, and the mapping
// from tagged errors to HTTP response codes.
package services
