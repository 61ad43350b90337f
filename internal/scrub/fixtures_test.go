package scrub

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// testImage returns a small gradient so that pixel comparisons are not
// trivially satisfied by a flat colour.
func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: uint8((x + y) * 5), A: 255})
		}
	}
	return img
}

func jpegSegment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// exifPayload is an APP1 body with a TIFF header and an ASCII GPS marker
// that tests look for after sanitizing.
var exifPayload = append([]byte("Exif\x00\x00MM\x00\x2a\x00\x00\x00\x08"), []byte("GPSLatitude=48.8584N")...)

// jpegWithExif encodes testImage and splices an EXIF APP1 and a comment
// segment right after SOI.
func jpegWithExif(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 90}))
	plain := buf.Bytes()

	out := []byte{0xFF, 0xD8}
	out = append(out, jpegSegment(0xE1, exifPayload)...)
	out = append(out, jpegSegment(0xFE, []byte("shot on a phone by Jane Doe"))...)
	return append(out, plain[2:]...)
}

func pngChunk(typ string, data []byte) []byte {
	chunk := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(chunk[:4], uint32(len(data)))
	copy(chunk[4:8], typ)
	chunk = append(chunk, data...)
	crc := crc32.ChecksumIEEE(chunk[4:])
	return binary.BigEndian.AppendUint32(chunk, crc)
}

// pngWithText encodes testImage and inserts a tEXt chunk after IHDR.
func pngWithText(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	plain := buf.Bytes()

	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	out := append([]byte{}, plain[:ihdrEnd]...)
	out = append(out, pngChunk("tEXt", []byte("Author\x00Jane Doe"))...)
	return append(out, plain[ihdrEnd:]...)
}

func requireSamePixels(t *testing.T, want, got []byte) {
	t.Helper()
	a, _, err := image.Decode(bytes.NewReader(want))
	require.NoError(t, err)
	b, _, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	require.Equal(t, a.Bounds(), b.Bounds())
	for y := a.Bounds().Min.Y; y < a.Bounds().Max.Y; y++ {
		for x := a.Bounds().Min.X; x < a.Bounds().Max.X; x++ {
			r1, g1, b1, a1 := a.At(x, y).RGBA()
			r2, g2, b2, a2 := b.At(x, y).RGBA()
			require.Equal(t, [4]uint32{r1, g1, b1, a1}, [4]uint32{r2, g2, b2, a2}, "pixel %d,%d", x, y)
		}
	}
}

const testXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>` +
	`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
	`<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">` +
	`<dc:creator><rdf:Seq><rdf:li>Jane Doe</rdf:li></rdf:Seq></dc:creator>` +
	`</rdf:Description></rdf:RDF></x:xmpmeta><?xpacket end="w"?>`

// buildPDF writes a one-page document with an Info dictionary and an XMP
// stream. catalogExtra is appended to the catalog dictionary.
func buildPDF(catalogExtra string) []byte {
	content := "0 0 m 100 100 l S"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R /Metadata 6 0 R " + catalogExtra + ">>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Title (Quarterly Report) /Author (Jane Doe) /Creator (Writer) >>",
		fmt.Sprintf("<< /Type /Metadata /Subtype /XML /Length %d >>\nstream\n%s\nendstream", len(testXMP), testXMP),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 5 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

type zipMember struct {
	name string
	data []byte
}

func buildZip(t *testing.T, members ...zipMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		if !strings.HasSuffix(m.name, "/") {
			_, err = w.Write(m.data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// rawZipMembers returns each member's stored bytes without decompressing
// or checking them.
func rawZipMembers(t *testing.T, data []byte) []zipMember {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	members := make([]zipMember, 0, len(zr.File))
	for _, f := range zr.File {
		r, err := f.OpenRaw()
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		require.NoError(t, err)
		members = append(members, zipMember{name: f.Name, data: body})
	}
	return members
}

// zipWithUnreadableMembers holds a stored photo.png whose checksum no longer
// matches and a blob.bin compressed with a method nothing can decode, between
// two healthy members.
func zipWithUnreadableMembers(t *testing.T) []byte {
	t.Helper()
	photo := pngWithText(t)
	blob := []byte("opaque payload")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("keep me"))
	require.NoError(t, err)

	w, err = zw.CreateHeader(&zip.FileHeader{Name: "photo.png", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write(photo)
	require.NoError(t, err)

	w, err = zw.CreateRaw(&zip.FileHeader{
		Name:               "blob.bin",
		Method:             99,
		CRC32:              crc32.ChecksumIEEE(blob),
		CompressedSize64:   uint64(len(blob)),
		UncompressedSize64: uint64(len(blob)),
	})
	require.NoError(t, err)
	_, err = w.Write(blob)
	require.NoError(t, err)

	w, err = zw.Create("song.wav")
	require.NoError(t, err)
	_, err = w.Write(wavWithTags())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out := buf.Bytes()
	at := bytes.Index(out, photo)
	require.Positive(t, at)
	out[at+len(photo)/2] ^= 0xFF
	return out
}

type rarMember struct {
	name string
	data []byte
}

// rarDosTime is 2024-01-02 10:30:00 in MS-DOS format.
const rarDosTime = (2024-1980)<<25 | 1<<21 | 2<<16 | 10<<11 | 30<<5

// buildRar lays out a RAR 4.x archive by hand with every member stored
// uncompressed. A trailing slash marks a directory.
func buildRar(members ...rarMember) []byte {
	out := []byte("Rar!\x1a\x07\x00")
	out = append(out, rarBlock(0x73, 0, make([]byte, 6))...)
	for _, m := range members {
		name := m.name
		flags := uint16(0x8000)
		attr := uint32(0x20)
		if strings.HasSuffix(name, "/") {
			name = strings.TrimSuffix(name, "/")
			flags |= 0x00e0
			attr = 0x10
		}
		body := binary.LittleEndian.AppendUint32(nil, uint32(len(m.data)))
		body = binary.LittleEndian.AppendUint32(body, uint32(len(m.data)))
		body = append(body, 0) // MS-DOS host
		body = binary.LittleEndian.AppendUint32(body, crc32.ChecksumIEEE(m.data))
		body = binary.LittleEndian.AppendUint32(body, rarDosTime)
		body = append(body, 20, 0x30) // version 2.0, stored
		body = binary.LittleEndian.AppendUint16(body, uint16(len(name)))
		body = binary.LittleEndian.AppendUint32(body, attr)
		body = append(body, name...)
		out = append(out, rarBlock(0x74, flags, body)...)
		out = append(out, m.data...)
	}
	return append(out, rarBlock(0x7b, 0, nil)...)
}

func rarBlock(typ byte, flags uint16, body []byte) []byte {
	hdr := []byte{typ}
	hdr = binary.LittleEndian.AppendUint16(hdr, flags)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(7+len(body)))
	hdr = append(hdr, body...)
	block := binary.LittleEndian.AppendUint16(nil, uint16(crc32.ChecksumIEEE(hdr)))
	return append(block, hdr...)
}

func readZipMembers(t *testing.T, data []byte) []zipMember {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	members := make([]zipMember, 0, len(zr.File))
	for _, f := range zr.File {
		body, err := readZipFile(f)
		require.NoError(t, err)
		members = append(members, zipMember{name: f.Name, data: body})
	}
	return members
}

func memberNames(members []zipMember) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	return names
}

const (
	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
		`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
		`<Override PartName="/docProps/custom.xml" ContentType="application/vnd.openxmlformats-officedocument.custom-properties+xml"/>` +
		`</Types>`
	testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
		`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties" Target="docProps/custom.xml"/>` +
		`</Relationships>`
	testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:r><w:t>Meeting notes</w:t></w:r></w:p></w:body></w:document>`
	testCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dc:creator>Jane Doe</dc:creator><cp:lastModifiedBy>John Roe</cp:lastModifiedBy><cp:revision>7</cp:revision>` +
		`</cp:coreProperties>`
	testAppXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Company>Acme Corp</Company><Manager>Jane Doe</Manager></Properties>`
	testCustomXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" ` +
		`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
		`<property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="2" name="Reviewer">` +
		`<vt:lpwstr>Jane Doe</vt:lpwstr></property></Properties>`
)

func buildDocx(t *testing.T) []byte {
	return buildZip(t,
		zipMember{partContentTypes, []byte(testContentTypes)},
		zipMember{partPackageRels, []byte(testPackageRels)},
		zipMember{"word/document.xml", []byte(testDocumentXML)},
		zipMember{partCoreProps, []byte(testCoreXML)},
		zipMember{partAppProps, []byte(testAppXML)},
		zipMember{partCustomProps, []byte(testCustomXML)},
	)
}

func buildXlsx(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "salary"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 4200))
	require.NoError(t, f.SetDocProps(&excelize.DocProperties{
		Creator:        "Jane Doe",
		LastModifiedBy: "John Roe",
		Title:          "Payroll",
	}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// mpegFrames is a run of silent MPEG-1 Layer III frame headers followed by
// zero padding. It is enough for the frame sync check.
func mpegFrames() []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return bytes.Repeat(frame, 3)
}

func id3v2Tag(t *testing.T) []byte {
	t.Helper()
	tag := id3v2.NewEmptyTag()
	tag.SetArtist("Jane Doe")
	tag.SetTitle("Voice memo")
	var buf bytes.Buffer
	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func id3v1Tag() []byte {
	tag := make([]byte, id3v1Size)
	copy(tag, "TAG")
	copy(tag[3:], "Voice memo")
	copy(tag[33:], "Jane Doe")
	return tag
}

func mp3WithTags(t *testing.T) []byte {
	out := id3v2Tag(t)
	out = append(out, mpegFrames()...)
	return append(out, id3v1Tag()...)
}

func flacBlock(typ byte, last bool, data []byte) []byte {
	hdr := typ
	if last {
		hdr |= 0x80
	}
	n := len(data)
	return append([]byte{hdr, byte(n >> 16), byte(n >> 8), byte(n)}, data...)
}

func vorbisComment(comments ...string) []byte {
	vendor := "reference libFLAC 1.4.3"
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(vendor)))
	out = append(out, vendor...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(comments)))
	for _, c := range comments {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c)))
		out = append(out, c...)
	}
	return out
}

var flacFrames = []byte{0xFF, 0xF8, 0x69, 0x08, 0x00, 0x00, 0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45}

func flacWithTags() []byte {
	streamInfo := make([]byte, 34)
	binary.BigEndian.PutUint16(streamInfo[0:], 4096)
	binary.BigEndian.PutUint16(streamInfo[2:], 4096)

	out := []byte("fLaC")
	out = append(out, flacBlock(0, false, streamInfo)...)
	out = append(out, flacBlock(4, false, vorbisComment("ARTIST=Jane Doe", "TITLE=Voice memo"))...)
	out = append(out, flacBlock(6, false, []byte("fake picture block"))...)
	out = append(out, flacBlock(1, true, make([]byte, 8))...)
	return append(out, flacFrames...)
}

func riffChunk(id string, data []byte) []byte {
	out := append([]byte(id), binary.LittleEndian.AppendUint32(nil, uint32(len(data)))...)
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

var wavSamples = []byte{0x00, 0x00, 0x10, 0x00, 0x20, 0x00, 0x30, 0x00}

func wavFmt() []byte {
	f := make([]byte, 16)
	binary.LittleEndian.PutUint16(f[0:], 1)     // PCM
	binary.LittleEndian.PutUint16(f[2:], 1)     // mono
	binary.LittleEndian.PutUint32(f[4:], 8000)  // sample rate
	binary.LittleEndian.PutUint32(f[8:], 16000) // byte rate
	binary.LittleEndian.PutUint16(f[12:], 2)    // block align
	binary.LittleEndian.PutUint16(f[14:], 16)   // bits per sample
	return f
}

func buildWAV(chunks ...[]byte) []byte {
	body := []byte("WAVE")
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...)
	return append(out, body...)
}

func wavWithTags() []byte {
	info := append([]byte("INFO"), riffChunk("INAM", []byte("Voice memo\x00"))...)
	info = append(info, riffChunk("IART", []byte("Jane Doe\x00"))...)
	return buildWAV(
		riffChunk("fmt ", wavFmt()),
		riffChunk("LIST", info),
		riffChunk("data", wavSamples),
		riffChunk("id3 ", []byte("ID3 tag payload")),
	)
}
