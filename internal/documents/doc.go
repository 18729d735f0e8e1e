// Package documents parses source material into sentence-segmented text
// documents that speakers recite against.
package documents
