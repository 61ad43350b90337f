package main

import (
	"path/filepath"
	"strings"
)

// DefaultContentTypeDetector maps file extensions to MIME types
type DefaultContentTypeDetector struct{}

// NewDefaultContentTypeDetector creates a new content type detector
func NewDefaultContentTypeDetector() *DefaultContentTypeDetector {
	return &DefaultContentTypeDetector{}
}

// DetectFromFilename detects content type from filename extension
func (d *DefaultContentTypeDetector) DetectFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".zip":
		return "application/zip"
	case ".rar":
		return "application/vnd.rar"
	default:
		return "application/octet-stream"
	}
}
