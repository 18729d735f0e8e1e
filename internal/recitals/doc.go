// Package recitals persists recital sessions, their text and audio
// segments, users, access tokens, and text documents in SQLite. Session
// rows carry the lifecycle status (active, ended, finalized) and the
// orthogonal disavowed flag; segments are append-only and ordered at read
// time by their client-supplied positions.
package recitals
