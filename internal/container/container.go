// Package container locates the embedded XMP packet inside JPEG and
// MP4/QuickTime byte streams.
package container

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrNotFound is returned whenever no XMP block could be located, including
// when the stream is truncated or structurally malformed.
var ErrNotFound = errors.New("container: xmp metadata not found")

// Format identifies a container type.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatMP4
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatMP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// Block describes one binary record (JPEG segment or MP4 box) found while
// walking a stream.
type Block struct {
	Type   string
	Offset int64
	Length int64
}

// Top-level atom types that may open an MP4 or QuickTime file.
var quickTimeAtoms = map[string]bool{
	"ftyp": true,
	"moov": true,
	"mdat": true,
	"wide": true,
	"free": true,
	"skip": true,
	"pnot": true,
}

// Detect sniffs the first bytes of r and rewinds it.
func Detect(r io.ReadSeeker) Format {
	head := make([]byte, 12)
	n, _ := io.ReadFull(r, head)
	_, _ = r.Seek(0, io.SeekStart)
	head = head[:n]

	switch {
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xD8:
		return FormatJPEG
	case len(head) >= 8 && quickTimeAtoms[string(head[4:8])]:
		return FormatMP4
	default:
		return FormatUnknown
	}
}

// FindXMP detects the container format and returns the XMP payload.
func FindXMP(r io.ReadSeeker) ([]byte, Format, error) {
	format := Detect(r)
	switch format {
	case FormatJPEG:
		data, err := FindJPEGXMP(r)
		return data, format, err
	case FormatMP4:
		data, err := FindMP4XMP(r)
		return data, format, err
	default:
		return nil, format, ErrNotFound
	}
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
