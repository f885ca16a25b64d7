package constants

import "strings"

// AllowedExtensions holds the document extensions accepted for extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// DocumentMimeType is what http.DetectContentType reports for accepted documents.
const DocumentMimeType = "application/pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MaxDocumentBytes caps an inlined document so the task stays a reasonable broker message.
const MaxDocumentBytes = 20 << 20

// MaxSourceNameBytes caps the stored document name.
const MaxSourceNameBytes = 255
