package scrub

import (
	"fmt"
	"strings"
)

// Tag identifies the format family of a file, derived from its declared
// extension. File tags and archive tags share one type but never overlap;
// use IsArchive to tell them apart.
type Tag uint8

const (
	// Unsupported is returned for names with no extension or an extension
	// outside the known table.
	Unsupported Tag = iota
	Image
	PDFDocument
	WordDocument
	Spreadsheet
	Audio
	Zip
	Rar
)

var extensionTags = map[string]Tag{
	"jpg":  Image,
	"jpeg": Image,
	"png":  Image,
	"pdf":  PDFDocument,
	"doc":  WordDocument,
	"docx": WordDocument,
	"xls":  Spreadsheet,
	"xlsx": Spreadsheet,
	"mp3":  Audio,
	"flac": Audio,
	"wav":  Audio,
	"zip":  Zip,
	"rar":  Rar,
}

// Classify maps a filename to its Tag using the lower-cased text after the
// last dot. The content is never inspected: the declared extension is
// trusted.
func Classify(filename string) Tag {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return Unsupported
	}
	return extensionTags[strings.ToLower(filename[idx+1:])]
}

// IsArchive reports whether the tag names a container format.
func (t Tag) IsArchive() bool {
	return t == Zip || t == Rar
}

// String returns the human-readable name of a tag.
func (t Tag) String() string {
	switch t {
	case Unsupported:
		return "unsupported"
	case Image:
		return "image"
	case PDFDocument:
		return "pdf"
	case WordDocument:
		return "word"
	case Spreadsheet:
		return "spreadsheet"
	case Audio:
		return "audio"
	case Zip:
		return "zip"
	case Rar:
		return "rar"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}
