package main

import (
	"mime"

	"github.com/ahmad-alkadri/scrubber/internal/services"
)

// DefaultFilenameExtractor extracts filenames from HTTP headers
type DefaultFilenameExtractor struct{}

// NewDefaultFilenameExtractor creates a new filename extractor
func NewDefaultFilenameExtractor() *DefaultFilenameExtractor {
	return &DefaultFilenameExtractor{}
}

// Extract returns the base name from a Content-Disposition header, or ""
// when the header is absent, malformed or names no file.
func (e *DefaultFilenameExtractor) Extract(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}

	return services.BaseFilename(params["filename"])
}
