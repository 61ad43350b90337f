// Package scrub removes embedded metadata from uploaded files.
//
// A file is classified by its declared extension (Classify), routed to the
// sanitizer for its format family, and rewritten without EXIF segments,
// document properties, audio tags or PDF metadata. Archives are walked entry
// by entry through the same single-file pipeline and rebuilt as zip files
// (SanitizeArchive). Everything happens on in-memory buffers; the package
// does no disk or network I/O.
package scrub

import (
	"fmt"
)

// Sanitizer strips metadata from one format family. Implementations return
// a newly allocated buffer and never hand back the input unchanged on
// failure.
type Sanitizer interface {
	Sanitize(data []byte) ([]byte, error)
}

// sanitizerFor is the registry. The switch is closed over the file tags so
// adding a Tag without a sanitizer falls through to the unsupported branch.
func sanitizerFor(tag Tag) (Sanitizer, bool) {
	switch tag {
	case Image:
		return imageSanitizer{}, true
	case PDFDocument:
		return pdfSanitizer{}, true
	case WordDocument:
		return wordSanitizer{}, true
	case Spreadsheet:
		return spreadsheetSanitizer{}, true
	case Audio:
		return audioSanitizer{}, true
	default:
		return nil, false
	}
}

// Sanitize classifies filename and runs the matching sanitizer over data.
// It fails with ErrUnsupportedType for unknown extensions and for archives
// (use SanitizeArchive for those), and with ErrDecode when data is not a
// valid instance of the declared format.
func Sanitize(data []byte, filename string) ([]byte, error) {
	tag := Classify(filename)
	s, ok := sanitizerFor(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}
	return run(s, tag, data)
}

// run guards against codecs that panic on malformed input.
func run(s Sanitizer, tag Tag, data []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = decodeErrorf(tag.String(), "codec panic: %v", r)
		}
	}()
	return s.Sanitize(data)
}
