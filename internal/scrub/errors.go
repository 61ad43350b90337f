package scrub

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned when a filename's extension is not in
	// the sanitizer table.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrUnsupportedArchiveType is returned when an archive tag is neither
	// zip nor rar.
	ErrUnsupportedArchiveType = errors.New("unsupported archive type")

	// ErrArchiveOpen is returned when container bytes are not a valid
	// instance of their declared archive format.
	ErrArchiveOpen = errors.New("cannot open archive")

	// ErrDecode is returned when a file's bytes are not a valid instance of
	// its declared format.
	ErrDecode = errors.New("cannot decode file")
)

// IsUserError reports whether err was caused by the uploaded file itself
// rather than by a fault on our side.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrUnsupportedArchiveType) ||
		errors.Is(err, ErrArchiveOpen) ||
		errors.Is(err, ErrDecode)
}

func decodeError(format string, cause error) error {
	return fmt.Errorf("%w as %s: %w", ErrDecode, format, cause)
}

func decodeErrorf(format, msg string, args ...any) error {
	return fmt.Errorf("%w as %s: %s", ErrDecode, format, fmt.Sprintf(msg, args...))
}

func archiveOpenError(format string, cause error) error {
	return fmt.Errorf("%w as %s: %w", ErrArchiveOpen, format, cause)
}
