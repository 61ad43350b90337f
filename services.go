package main

import (
	"context"

	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/ahmad-alkadri/scrubber/internal/services"
)

// StorageService keeps cleaned files
type StorageService interface {
	SaveObject(ctx context.Context, objectName string, data []byte, contentType string) error
	GetObject(ctx context.Context, objectName string) ([]byte, error)
	ListObjects(ctx context.Context) ([]string, error)
	DeleteObject(ctx context.Context, objectName string) error
}

// IDGenerator generates unique identifiers
type IDGenerator interface {
	Generate() string
}

// ArchiveSanitizer cleans zip and rar uploads
type ArchiveSanitizer interface {
	SanitizeArchive(data []byte, tag scrub.Tag) ([]byte, error)
}

// UploadExtractor pulls the uploaded file out of a multipart body
type UploadExtractor interface {
	Extract(data []byte, contentType string) (services.Upload, error)
}

// ContentTypeDetector detects content types from filenames
type ContentTypeDetector interface {
	DetectFromFilename(filename string) string
}

// FilenameExtractor extracts filenames from HTTP requests
type FilenameExtractor interface {
	Extract(contentDisposition string) string
}

// ResponseFormatter formats HTTP responses
type ResponseFormatter interface {
	FormatUploadResponse(result CleanResult) map[string]any
	FormatSignatureResponse(signed bool) map[string]any
	FormatListResponse(objects []string, count int) map[string]any
	FormatError(err error) map[string]any
}

// CleanResult describes a stored cleaned file
type CleanResult struct {
	ID         string
	ObjectName string
	Filename   string
	Size       int
}

// Download is a stored cleaned file ready to be sent back
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CleaningService orchestrates sanitizing and storing uploads
type CleaningService interface {
	Clean(ctx context.Context, filename string, data []byte) (CleanResult, error)
	Fetch(ctx context.Context, objectName string) (Download, error)
	ListCleaned(ctx context.Context) ([]string, error)
	CheckSignature(data []byte) (bool, error)
}
