package scrub

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/nwaples/rardecode/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Entry is one member read from a source archive.
type Entry struct {
	Name     string
	Data     []byte
	Dir      bool
	Modified time.Time
	Comment  string

	// raw is set for zip members that could not be decompressed. They are
	// copied into the output without being opened.
	raw *zip.File
}

// Report summarises one archive walk.
type Report struct {
	Entries       int
	Sanitized     int
	PassedThrough int
}

// Walker rebuilds archives with every member run through Sanitize.
type Walker struct {
	workers int
	logger  zerolog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithWorkers bounds how many entries are sanitized at once. Values below
// one mean runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithLogger sets the logger used for per-entry decisions.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a Walker. Without options it is silent and uses one
// worker per available CPU.
func NewWalker(opts ...Option) *Walker {
	w := &Walker{
		workers: runtime.GOMAXPROCS(0),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SanitizeArchive rebuilds a zip or rar archive with default options. See
// Walker.Walk.
func SanitizeArchive(data []byte, tag Tag) ([]byte, error) {
	out, _, err := NewWalker().Walk(data, tag)
	return out, err
}

// SanitizeArchive is Walk without the report.
func (w *Walker) SanitizeArchive(data []byte, tag Tag) ([]byte, error) {
	out, _, err := w.Walk(data, tag)
	return out, err
}

// Walk reads every entry of the archive, sanitizes the ones it can and
// writes all of them, in source order and under their original names, into
// a new zip archive. Rar input therefore comes back as zip.
//
// An entry that is unsupported or fails to decode is copied unchanged; it
// never aborts the walk. Only a container that cannot be read fails with
// ErrArchiveOpen, and a tag other than Zip or Rar fails with
// ErrUnsupportedArchiveType.
func (w *Walker) Walk(data []byte, tag Tag) ([]byte, Report, error) {
	var (
		entries []Entry
		err     error
	)
	switch tag {
	case Zip:
		entries, err = w.readZip(data)
	case Rar:
		entries, err = readRar(data)
	default:
		return nil, Report{}, fmt.Errorf("%w: %s", ErrUnsupportedArchiveType, tag)
	}
	if err != nil {
		return nil, Report{}, err
	}

	results, err := w.sanitizeEntries(entries)
	if err != nil {
		return nil, Report{}, err
	}

	out, err := writeZip(entries, results)
	if err != nil {
		return nil, Report{}, err
	}

	report := Report{Entries: len(entries)}
	for _, r := range results {
		if r != nil {
			report.Sanitized++
		}
	}
	report.PassedThrough = report.Entries - report.Sanitized
	w.logger.Info().
		Str("format", tag.String()).
		Int("entries", report.Entries).
		Int("sanitized", report.Sanitized).
		Int("passed_through", report.PassedThrough).
		Str("in", humanize.Bytes(uint64(len(data)))).
		Str("out", humanize.Bytes(uint64(len(out)))).
		Msg("Archive rebuilt")
	return out, report, nil
}

// sanitizeEntries runs Sanitize over the file entries on a bounded pool.
// results[i] is nil when entry i must be passed through.
func (w *Walker) sanitizeEntries(entries []Entry) ([][]byte, error) {
	results := make([][]byte, len(entries))

	var g errgroup.Group
	g.SetLimit(w.workers)
	for i, e := range entries {
		if e.Dir || e.raw != nil {
			continue
		}
		g.Go(func() error {
			out, err := Sanitize(e.Data, e.Name)
			switch {
			case err == nil:
				results[i] = out
				w.logger.Debug().Str("entry", e.Name).Msg("Entry sanitized")
			case errors.Is(err, ErrUnsupportedType):
				w.logger.Debug().Str("entry", e.Name).Msg("Entry type unsupported, copying as is")
			case errors.Is(err, ErrDecode):
				w.logger.Warn().Str("entry", e.Name).Err(err).Msg("Entry could not be sanitized, copying as is")
			default:
				return fmt.Errorf("sanitize entry %q: %w", e.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (w *Walker) readZip(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, archiveOpenError("zip", err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		e := Entry{
			Name:     f.Name,
			Dir:      f.FileInfo().IsDir(),
			Modified: f.Modified,
			Comment:  f.Comment,
		}
		if !e.Dir {
			e.Data, err = readZipFile(f)
			if err != nil {
				w.logger.Warn().Str("entry", f.Name).Err(err).Msg("Entry could not be read, copying raw")
				e.Data = nil
				e.raw = f
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readRar(data []byte) ([]Entry, error) {
	rr, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, archiveOpenError("rar", err)
	}

	var entries []Entry
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, archiveOpenError("rar", err)
		}
		e := Entry{
			Name:     hdr.Name,
			Dir:      hdr.IsDir,
			Modified: hdr.ModificationTime,
		}
		if !e.Dir {
			if e.Data, err = io.ReadAll(rr); err != nil {
				return nil, archiveOpenError("rar", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// writeZip serializes entries in order. zip.Writer is not safe for
// concurrent use, so this always runs on the calling goroutine.
func writeZip(entries []Entry, results [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, e := range entries {
		if e.raw != nil {
			if err := zw.Copy(e.raw); err != nil {
				return nil, fmt.Errorf("copy entry %q: %w", e.Name, err)
			}
			continue
		}

		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: e.Modified,
			Comment:  e.Comment,
		}
		if e.Dir {
			if !strings.HasSuffix(hdr.Name, "/") {
				hdr.Name += "/"
			}
			hdr.Method = zip.Store
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("create entry %q: %w", e.Name, err)
		}
		if e.Dir {
			continue
		}

		body := results[i]
		if body == nil {
			body = e.Data
		}
		if _, err := fw.Write(body); err != nil {
			return nil, fmt.Errorf("write entry %q: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
