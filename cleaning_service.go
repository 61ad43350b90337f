package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/ahmad-alkadri/scrubber/internal/services"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// ErrInvalidObjectName is returned for download keys that could not have
// been produced by Clean.
var ErrInvalidObjectName = errors.New("invalid object name")

// DefaultCleaningService sanitizes uploads and keeps the results in storage
type DefaultCleaningService struct {
	storage     StorageService
	archives    ArchiveSanitizer
	idGenerator IDGenerator
	detector    ContentTypeDetector
	logger      zerolog.Logger
}

// NewDefaultCleaningService creates a new cleaning service with all dependencies
func NewDefaultCleaningService(
	storage StorageService,
	archives ArchiveSanitizer,
	idGenerator IDGenerator,
	detector ContentTypeDetector,
	logger zerolog.Logger,
) *DefaultCleaningService {
	return &DefaultCleaningService{
		storage:     storage,
		archives:    archives,
		idGenerator: idGenerator,
		detector:    detector,
		logger:      logger,
	}
}

// Clean sanitizes data according to filename's extension and stores the
// cleaned copy as <id>_cleaned_<filename>. Sanitizer errors are returned
// unwrapped so callers can test them with scrub.IsUserError.
func (s *DefaultCleaningService) Clean(ctx context.Context, filename string, data []byte) (CleanResult, error) {
	tag := scrub.Classify(filename)

	var (
		cleaned []byte
		err     error
	)
	if tag.IsArchive() {
		cleaned, err = s.archives.SanitizeArchive(data, tag)
	} else {
		cleaned, err = scrub.Sanitize(data, filename)
	}
	if err != nil {
		return CleanResult{}, err
	}

	id := s.idGenerator.Generate()
	cleanedName := CleanedFilename(filename)
	objectName := id + "_" + cleanedName

	if err := s.storage.SaveObject(ctx, objectName, cleaned, s.detector.DetectFromFilename(cleanedName)); err != nil {
		return CleanResult{}, fmt.Errorf("error storing cleaned file: %w", err)
	}

	s.logger.Info().
		Str("id", id).
		Str("filename", filename).
		Stringer("type", tag).
		Str("in", humanize.IBytes(uint64(len(data)))).
		Str("out", humanize.IBytes(uint64(len(cleaned)))).
		Msg("File cleaned")

	return CleanResult{
		ID:         id,
		ObjectName: objectName,
		Filename:   cleanedName,
		Size:       len(cleaned),
	}, nil
}

// Fetch loads a cleaned file. The download name drops the id prefix.
func (s *DefaultCleaningService) Fetch(ctx context.Context, objectName string) (Download, error) {
	_, name, ok := strings.Cut(objectName, "_")
	if !ok || name == "" || strings.ContainsAny(objectName, `/\`) {
		return Download{}, fmt.Errorf("%w: %q", ErrInvalidObjectName, objectName)
	}

	data, err := s.storage.GetObject(ctx, objectName)
	if err != nil {
		return Download{}, err
	}

	return Download{
		Filename:    name,
		ContentType: s.detector.DetectFromFilename(name),
		Data:        data,
	}, nil
}

// ListCleaned lists all stored cleaned files
func (s *DefaultCleaningService) ListCleaned(ctx context.Context) ([]string, error) {
	return s.storage.ListObjects(ctx)
}

// CheckSignature reports whether a PDF carries a signature entry.
func (s *DefaultCleaningService) CheckSignature(data []byte) (bool, error) {
	return scrub.HasSignature(data)
}

// CleanedFilename is the name a cleaned copy of filename is stored and
// downloaded under. Rar input is rewritten as zip.
func CleanedFilename(filename string) string {
	name := services.BaseFilename(filename)
	if scrub.Classify(name) == scrub.Rar {
		name = name[:len(name)-len(".rar")] + ".zip"
	}
	return "cleaned_" + name
}
