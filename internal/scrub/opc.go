package scrub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Office Open XML packages keep document properties in three parts. Each
// is swapped for an empty document of the same schema so that the content
// types and relationships that point at them stay valid.
const (
	partCoreProps   = "docProps/core.xml"
	partAppProps    = "docProps/app.xml"
	partCustomProps = "docProps/custom.xml"

	partContentTypes = "[Content_Types].xml"
	partPackageRels  = "_rels/.rels"

	relTypeOfficeDocument = "/officeDocument"
)

var blankProperties = map[string][]byte{
	partCoreProps: []byte(xml.Header + `<cp:coreProperties` +
		` xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"></cp:coreProperties>`),
	partAppProps: []byte(xml.Header + `<Properties` +
		` xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"` +
		` xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"></Properties>`),
	partCustomProps: []byte(xml.Header + `<Properties` +
		` xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"` +
		` xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"></Properties>`),
}

type opcRelationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// opcMainPart resolves the officeDocument relationship of a package.
func opcMainPart(zr *zip.Reader) (string, error) {
	f := findZipFile(zr, partPackageRels)
	if f == nil {
		return "", fmt.Errorf("missing %s", partPackageRels)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return "", err
	}
	var rels opcRelationships
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return "", fmt.Errorf("parse %s: %w", partPackageRels, err)
	}
	for _, rel := range rels.Relationships {
		if strings.HasSuffix(rel.Type, relTypeOfficeDocument) {
			return strings.TrimPrefix(path.Clean("/"+rel.Target), "/"), nil
		}
	}
	return "", fmt.Errorf("no officeDocument relationship")
}

// scrubOPC rewrites a package with blank property parts. The main part must
// live under mainDir (for example "word/") so that a workbook renamed to
// .docx is still rejected.
func scrubOPC(data []byte, format, mainDir string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, decodeError(format, err)
	}
	if findZipFile(zr, partContentTypes) == nil {
		return nil, decodeErrorf(format, "missing %s", partContentTypes)
	}
	main, err := opcMainPart(zr)
	if err != nil {
		return nil, decodeError(format, err)
	}
	if !strings.HasPrefix(main, mainDir) || findZipFile(zr, main) == nil {
		return nil, decodeErrorf(format, "main part %q not found", main)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		blank, isProps := blankProperties[f.Name]
		if !isProps {
			if err := zw.Copy(f); err != nil {
				return nil, decodeError(format, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, decodeError(format, err)
		}
		if _, err := w.Write(blank); err != nil {
			return nil, decodeError(format, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, decodeError(format, err)
	}
	return buf.Bytes(), nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type wordSanitizer struct{}

// Sanitize accepts Office Open XML word processing packages. Legacy binary
// .doc files are not zip packages and fail with ErrDecode.
func (wordSanitizer) Sanitize(data []byte) ([]byte, error) {
	return scrubOPC(data, "word document", "word/")
}
