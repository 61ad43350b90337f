// Command scrub strips metadata from files on disk using the same core as
// the upload server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahmad-alkadri/scrubber/internal/logging"
	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// CLI holds the command-line arguments
type CLI struct {
	Debug   bool `kong:"name='debug',help='Enable debug logging.'"`
	LogJSON bool `kong:"name='log-json',help='Output logs in JSON format.'"`

	Clean     CleanCmd     `kong:"cmd,help='Write a metadata-free copy of a file or archive.'"`
	Signature SignatureCmd `kong:"cmd,help='Report whether a PDF carries a signature.'"`
}

type CleanCmd struct {
	Input   string `kong:"arg,type='existingfile',help='File to clean.'"`
	Output  string `kong:"name='output',short='o',help='Destination path. Default: cleaned_<name> next to the input.'"`
	Workers int    `kong:"name='workers',default='0',help='Archive entries cleaned in parallel (0 = one per CPU).'"`
}

func (c *CleanCmd) Run(logger zerolog.Logger) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Input, err)
	}

	name := filepath.Base(c.Input)
	tag := scrub.Classify(name)

	var (
		cleaned []byte
		report  scrub.Report
	)
	if tag.IsArchive() {
		walker := scrub.NewWalker(scrub.WithWorkers(c.Workers), scrub.WithLogger(logger))
		cleaned, report, err = walker.Walk(data, tag)
	} else {
		cleaned, err = scrub.Sanitize(data, name)
	}
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = filepath.Join(filepath.Dir(c.Input), defaultOutputName(name, tag))
	}
	if err := os.WriteFile(out, cleaned, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	event := logger.Info().
		Str("input", c.Input).
		Str("output", out).
		Stringer("type", tag).
		Str("size", humanize.IBytes(uint64(len(cleaned))))
	if tag.IsArchive() {
		event = event.Int("entries", report.Entries).
			Int("sanitized", report.Sanitized).
			Int("passed_through", report.PassedThrough)
	}
	event.Msg("File cleaned")
	return nil
}

// defaultOutputName prefixes cleaned_ and turns rar into zip, since the
// walker always writes zip.
func defaultOutputName(name string, tag scrub.Tag) string {
	if tag == scrub.Rar {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".zip"
	}
	return "cleaned_" + name
}

type SignatureCmd struct {
	Input string `kong:"arg,type='existingfile',help='PDF to inspect.'"`
}

func (s *SignatureCmd) Run(kctx *kong.Context) error {
	data, err := os.ReadFile(s.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.Input, err)
	}
	signed, err := scrub.HasSignature(data)
	if err != nil {
		return err
	}
	if signed {
		fmt.Fprintln(kctx.Stdout, "signed")
	} else {
		fmt.Fprintln(kctx.Stdout, "unsigned")
	}
	return nil
}

func setupLogging(cli *CLI) zerolog.Logger {
	level := "info"
	if cli.Debug {
		level = "debug"
	}
	return logging.Setup(level, cli.LogJSON)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("scrub"),
		kong.Description("Strip embedded metadata from images, PDFs, office documents, audio and archives."),
		kong.UsageOnError(),
	)

	logger := setupLogging(&cli)
	err := kctx.Run(logger)
	if err != nil {
		logger.Error().Err(err).Msg("Command failed")
	}
	kctx.FatalIfErrorf(err)
}
