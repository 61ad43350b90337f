package scrub

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu reads and creates a config directory under $HOME by default.
	api.DisableConfigDir()
}

// pdfCatalogMetadataKeys are catalog entries that carry metadata or
// signature state but are not needed to render pages.
var pdfCatalogMetadataKeys = []string{
	"Metadata",  // XMP stream
	"PieceInfo", // producer private data
	"Perms",     // DocMDP / UR signature references
	"Sig",
	"Legal",
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func readPDF(data []byte) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, decodeError("pdf", err)
	}
	return ctx, nil
}

type pdfSanitizer struct{}

// Sanitize re-serializes the document through pdfcpu. The writer only emits
// objects reachable from the catalog, so detaching the Info dictionary and
// the catalog metadata entries drops them from the output.
func (pdfSanitizer) Sanitize(data []byte) ([]byte, error) {
	ctx, err := readPDF(data)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, decodeError("pdf", err)
	}
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, decodeError("pdf", err)
	}

	root, err := ctx.Catalog()
	if err != nil {
		return nil, decodeError("pdf", err)
	}
	for _, key := range pdfCatalogMetadataKeys {
		root.Delete(key)
	}
	ctx.Info = nil

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, decodeError("pdf", err)
	}
	return buf.Bytes(), nil
}

// HasSignature reports whether the document catalog of a PDF carries a /Sig
// entry. The document is only read, never rewritten.
func HasSignature(data []byte) (bool, error) {
	ctx, err := readPDF(data)
	if err != nil {
		return false, err
	}
	root, err := ctx.Catalog()
	if err != nil {
		return false, decodeError("pdf", err)
	}
	_, found := root.Find("Sig")
	return found, nil
}
