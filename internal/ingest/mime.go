package ingest

import (
	"mime"
	"strings"
)

// Common capture formats get fixed extensions so segment filenames stay
// stable across platforms with different mime databases.
var wellKnownExtensions = map[string]string{
	"audio/ogg":  ".ogg",
	"audio/webm": ".webm",
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/wav":  ".wav",
	"audio/wave": ".wav",
	"audio/aac":  ".aac",
	"audio/flac": ".flac",
}

// extensionForMIME maps a content type to a file extension. Parameters
// after the first semicolon (codecs and the like) are ignored. Unknown
// types fall back to ".bin".
func extensionForMIME(mimeType string) string {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	if base == "" {
		return ".bin"
	}
	if ext, ok := wellKnownExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
