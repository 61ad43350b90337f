package main

import (
	"net/url"
)

const cleanedMessage = "File successfully cleaned"

// DefaultResponseFormatter handles formatting HTTP responses
type DefaultResponseFormatter struct{}

// NewDefaultResponseFormatter creates a new response formatter
func NewDefaultResponseFormatter() *DefaultResponseFormatter {
	return &DefaultResponseFormatter{}
}

// FormatUploadResponse formats the response for the upload endpoint
func (f *DefaultResponseFormatter) FormatUploadResponse(result CleanResult) map[string]any {
	return map[string]any{
		"message":      cleanedMessage,
		"download_url": "/download/" + url.PathEscape(result.ObjectName),
		"id":           result.ID,
		"filename":     result.Filename,
		"size":         result.Size,
	}
}

// FormatSignatureResponse formats the response for the PDF signature check
func (f *DefaultResponseFormatter) FormatSignatureResponse(signed bool) map[string]any {
	return map[string]any{"signed": signed}
}

// FormatListResponse formats the response for list endpoint
func (f *DefaultResponseFormatter) FormatListResponse(objects []string, count int) map[string]any {
	if objects == nil {
		objects = []string{}
	}
	return map[string]any{
		"count":   count,
		"objects": objects,
	}
}

// FormatError formats the response for a failed request
func (f *DefaultResponseFormatter) FormatError(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
