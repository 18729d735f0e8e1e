// Package finalizer merges the audio segments of ended sessions into a
// single artifact in the background.
package finalizer
