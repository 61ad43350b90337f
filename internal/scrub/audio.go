package scrub

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/go-flac/go-flac"
)

const (
	id3v2HeaderSize = 10
	id3v1Size       = 128
	id3v1ExtSize    = 227 // "TAG+" block preceding an ID3v1 tag
	apeFooterSize   = 32
	apeHasHeader    = 1 << 31
)

// riffMetadataChunks are WAVE chunks that hold tags rather than samples.
var riffMetadataChunks = map[string]bool{
	"LIST": true,
	"id3 ": true,
	"ID3 ": true,
	"bext": true,
	"iXML": true,
	"_PMX": true,
	"DISP": true,
}

type audioSanitizer struct{}

// Sanitize removes every tag from an mp3, flac or wav file. The extension
// only says "audio", so the container is recognised from its signature.
func (audioSanitizer) Sanitize(data []byte) ([]byte, error) {
	body, err := stripLeadingID3v2(data)
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(body, []byte("fLaC")):
		return sanitizeFLAC(body)
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WAVE":
		return sanitizeWAV(data)
	default:
		return sanitizeMP3(body)
	}
}

// stripLeadingID3v2 skips any number of ID3v2 tags at the start of data.
func stripLeadingID3v2(data []byte) ([]byte, error) {
	for len(data) >= id3v2HeaderSize && bytes.HasPrefix(data, []byte("ID3")) {
		size, ok := syncsafe(data[6:10])
		if !ok {
			return nil, decodeErrorf("audio", "malformed ID3v2 size")
		}
		total := id3v2HeaderSize + size
		if data[5]&0x10 != 0 {
			total += id3v2HeaderSize // footer
		}
		if total > len(data) {
			return nil, decodeErrorf("audio", "ID3v2 tag overruns file")
		}
		data = data[total:]
	}
	return data, nil
}

func syncsafe(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c&0x80 != 0 {
			return 0, false
		}
		n = n<<7 | int(c)
	}
	return n, true
}

// sanitizeMP3 strips trailing ID3v1, ID3v2 footer-tagged and APEv2 tags and
// checks that what is left starts with an MPEG frame.
func sanitizeMP3(data []byte) ([]byte, error) {
	for {
		n := len(data)
		switch {
		case n >= id3v1Size && string(data[n-id3v1Size:n-id3v1Size+3]) == "TAG":
			data = data[:n-id3v1Size]
			if m := len(data); m >= id3v1ExtSize && string(data[m-id3v1ExtSize:m-id3v1ExtSize+4]) == "TAG+" {
				data = data[:m-id3v1ExtSize]
			}
		case n >= apeFooterSize && string(data[n-apeFooterSize:n-apeFooterSize+8]) == "APETAGEX":
			footer := data[n-apeFooterSize:]
			size := int(binary.LittleEndian.Uint32(footer[12:16]))
			if binary.LittleEndian.Uint32(footer[20:24])&apeHasHeader != 0 {
				size += apeFooterSize
			}
			if size < apeFooterSize || size > n {
				return nil, decodeErrorf("mp3", "malformed APEv2 tag")
			}
			data = data[:n-size]
		case n >= id3v2HeaderSize && string(data[n-id3v2HeaderSize:n-id3v2HeaderSize+3]) == "3DI":
			size, ok := syncsafe(data[n-4:])
			total := size + 2*id3v2HeaderSize
			if !ok || total > n {
				return nil, decodeErrorf("mp3", "malformed appended ID3v2 tag")
			}
			data = data[:n-total]
		default:
			if len(data) < 2 || data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
				return nil, decodeErrorf("mp3", "no MPEG frame sync")
			}
			return bytes.Clone(data), nil
		}
	}
}

// sanitizeFLAC drops the Vorbis comment and embedded pictures. Stream info,
// seek tables, cue sheets and the frames are written back untouched.
func sanitizeFLAC(data []byte) ([]byte, error) {
	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("flac", err)
	}
	if len(f.Meta) == 0 || f.Meta[0].Type != flac.StreamInfo {
		return nil, decodeError("flac", errors.New("missing STREAMINFO block"))
	}
	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment || block.Type == flac.Picture {
			continue
		}
		kept = append(kept, block)
	}
	f.Meta = kept
	return f.Marshal(), nil
}

// sanitizeWAV rebuilds the RIFF container without tag chunks. Bytes after
// the declared end of the RIFF form are dropped as well, since tag writers
// sometimes append ID3 data there.
func sanitizeWAV(data []byte) ([]byte, error) {
	end := int(binary.LittleEndian.Uint32(data[4:8])) + 8
	if end > len(data) || end < 12 {
		end = len(data)
	}

	var chunks bytes.Buffer
	var hasFmt, hasData bool
	for i := 12; i+8 <= end; {
		id := string(data[i : i+4])
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		next := i + 8 + size + size&1
		if i+8+size > end {
			if id != "data" {
				return nil, decodeErrorf("wav", "chunk %q overruns file", id)
			}
			// Streaming writers leave the data size unset.
			next = end
		}
		if next > end {
			next = end
		}

		switch id {
		case "fmt ":
			hasFmt = true
		case "data":
			hasData = true
		}
		if !riffMetadataChunks[id] {
			chunks.Write(data[i:next])
		}
		i = next
	}
	if !hasFmt || !hasData {
		return nil, decodeErrorf("wav", "missing fmt or data chunk")
	}

	out := make([]byte, 12, 12+chunks.Len())
	copy(out, "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+chunks.Len()))
	copy(out[8:12], "WAVE")
	return append(out, chunks.Bytes()...), nil
}
