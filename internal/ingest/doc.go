// Package ingest accepts recital session lifecycle requests and streamed
// text and audio segments, persisting segments append-only.
package ingest
