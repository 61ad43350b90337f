package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// ErrInvalidUpload marks a request body that carries no usable file.
var ErrInvalidUpload = errors.New("invalid upload")

// Upload is one file taken out of a request body.
type Upload struct {
	Filename string
	Data     []byte
}

// MultipartProcessor pulls the file part named by field out of a
// multipart/form-data body.
type MultipartProcessor struct {
	field string
}

func NewMultipartProcessor(field string) *MultipartProcessor {
	return &MultipartProcessor{field: field}
}

// IsMultipart reports whether contentType announces a multipart form.
func IsMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "multipart/form-data"
}

// Extract returns the first part of the form that matches the configured
// field and carries a filename.
func (p *MultipartProcessor) Extract(data []byte, contentType string) (Upload, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: error parsing media type: %w", ErrInvalidUpload, err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return Upload{}, fmt.Errorf("%w: multipart body without boundary", ErrInvalidUpload)
	}

	mr := multipart.NewReader(bytes.NewReader(data), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Upload{}, fmt.Errorf("%w: error reading part: %w", ErrInvalidUpload, err)
		}

		if part.FormName() != p.field || part.FileName() == "" {
			part.Close()
			continue
		}

		partData, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return Upload{}, fmt.Errorf("%w: error reading part %q: %w", ErrInvalidUpload, p.field, err)
		}

		return Upload{Filename: BaseFilename(part.FileName()), Data: partData}, nil
	}

	return Upload{}, fmt.Errorf("%w: no %q file in form", ErrInvalidUpload, p.field)
}

// BaseFilename drops any directory components a client sent along with the
// name, including Windows-style ones.
func BaseFilename(name string) string {
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	if name == "." || name == ".." {
		return ""
	}
	return name
}
