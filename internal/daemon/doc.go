// Package daemon wires the store, ingestion gateway, finalizer, and HTTP
// API into a single-instance background service.
package daemon
