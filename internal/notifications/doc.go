// Package notifications delivers best-effort email updates to speakers
// through an HTTP mail relay.
package notifications
