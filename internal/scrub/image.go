package scrub

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"image/png"
)

// JPEG markers that matter when walking the segment list.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerTEM  = 0x01
	markerAPP0 = 0xE0
	markerAPPE = 0xEE
	markerAPPF = 0xEF
	markerCOM  = 0xFE
)

type imageSanitizer struct{}

func (imageSanitizer) Sanitize(data []byte) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("image", err)
	}
	switch format {
	case "jpeg":
		return sanitizeJPEG(data)
	case "png":
		return sanitizePNG(data)
	default:
		return nil, decodeErrorf("image", "unsupported image format %q", format)
	}
}

// sanitizePNG decodes the raster and encodes it again. image/png only ever
// writes the critical chunks, so text, time, exif and colour profile chunks
// are gone from the result while the decoded pixels stay the same.
func sanitizePNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("png", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, decodeError("png", err)
	}
	return buf.Bytes(), nil
}

// sanitizeJPEG drops metadata segments at the marker level. Re-encoding a
// JPEG is lossy, so the tables and entropy-coded scans are copied verbatim
// and only APPn/COM segments that carry no decoding state are removed.
func sanitizeJPEG(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, decodeErrorf("jpeg", "missing SOI marker")
	}

	out := make([]byte, 0, len(data))
	out = append(out, 0xFF, markerSOI)

	i := 2
	for {
		if i >= len(data) {
			return nil, decodeErrorf("jpeg", "missing EOI marker")
		}
		if data[i] != 0xFF {
			return nil, decodeErrorf("jpeg", "expected marker at offset %d", i)
		}
		// Any number of 0xFF fill bytes may precede a marker.
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return nil, decodeErrorf("jpeg", "truncated marker")
		}
		marker := data[i]
		i++

		if marker == markerEOI {
			out = append(out, 0xFF, markerEOI)
			break
		}
		if marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7) {
			out = append(out, 0xFF, marker)
			continue
		}

		if i+2 > len(data) {
			return nil, decodeErrorf("jpeg", "truncated segment length")
		}
		length := int(binary.BigEndian.Uint16(data[i:]))
		if length < 2 || i+length > len(data) {
			return nil, decodeErrorf("jpeg", "segment 0x%02X overruns file", marker)
		}
		payload := data[i+2 : i+length]
		segment := data[i-2 : i+length]
		i += length

		if keepJPEGSegment(marker, payload) {
			out = append(out, segment...)
		}

		if marker == markerSOS {
			end := scanEnd(data, i)
			out = append(out, data[i:end]...)
			i = end
		}
	}

	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		return nil, decodeError("jpeg", err)
	}
	return out, nil
}

// keepJPEGSegment reports whether a segment is needed to decode the image.
// JFIF (APP0) and Adobe (APP14) carry the colour transform; every other
// application segment and comments are metadata.
func keepJPEGSegment(marker byte, payload []byte) bool {
	switch {
	case marker == markerCOM:
		return false
	case marker == markerAPP0:
		return bytes.HasPrefix(payload, []byte("JFIF\x00"))
	case marker == markerAPPE:
		return bytes.HasPrefix(payload, []byte("Adobe"))
	case marker > markerAPP0 && marker <= markerAPPF:
		return false
	default:
		return true
	}
}

// scanEnd returns the offset of the first marker after entropy-coded data
// starting at i. Stuffed zero bytes and restart markers belong to the scan.
func scanEnd(data []byte, i int) int {
	for i+1 < len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		next := data[i+1]
		if next == 0x00 || (next >= markerRST0 && next <= markerRST7) {
			i += 2
			continue
		}
		if next == 0xFF {
			i++
			continue
		}
		return i
	}
	return len(data)
}
