package container

import (
	"bytes"
	"io"
)

const (
	jpegSOI     = 0xFFD8
	markerStart = 0xFF
	markerAPP1  = 0xE1
)

// xmpSignature opens every XMP APP1 segment.
var xmpSignature = []byte("http://ns.adobe.com/xap/1.0/\x00")

// FindJPEGXMP walks the JPEG marker chain and returns the XML of the first
// APP1 segment carrying the XMP signature. APP1 segments with any other
// signature (EXIF, extended XMP) are skipped.
func FindJPEGXMP(r io.ReadSeeker) ([]byte, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, ErrNotFound
	}
	soi, err := readUint16(r)
	if err != nil || soi != jpegSOI {
		return nil, ErrNotFound
	}

	for {
		seg, err := nextAPP1(r)
		if err != nil {
			return nil, ErrNotFound
		}

		if seg.Length >= int64(len(xmpSignature))+2 {
			sig := make([]byte, len(xmpSignature))
			if _, err := io.ReadFull(r, sig); err != nil {
				return nil, ErrNotFound
			}
			if bytes.Equal(sig, xmpSignature) {
				content := make([]byte, seg.Length-int64(len(xmpSignature))-2)
				if _, err := io.ReadFull(r, content); err != nil {
					return nil, ErrNotFound
				}
				return trimPacket(content), nil
			}
		}

		if _, err := r.Seek(seg.Offset+seg.Length, io.SeekStart); err != nil {
			return nil, ErrNotFound
		}
	}
}

// nextAPP1 skips non-APP1 segments and returns the next APP1 segment,
// leaving r positioned just after its length field. Offset is the position
// of the length field, so Offset+Length is the start of the next segment.
func nextAPP1(r io.ReadSeeker) (Block, error) {
	for {
		marker, err := readByte(r)
		if err != nil {
			return Block{}, err
		}
		if marker != markerStart {
			return Block{}, ErrNotFound
		}
		kind, err := readByte(r)
		if err != nil {
			return Block{}, err
		}

		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return Block{}, err
		}
		length, err := readUint16(r)
		if err != nil {
			return Block{}, err
		}
		if length < 2 {
			return Block{}, ErrNotFound
		}

		if kind == markerAPP1 {
			return Block{Type: "APP1", Offset: offset, Length: int64(length)}, nil
		}
		if _, err := r.Seek(int64(length)-2, io.SeekCurrent); err != nil {
			return Block{}, err
		}
	}
}

// trimPacket drops padding after the last processing instruction close.
func trimPacket(content []byte) []byte {
	if pos := bytes.LastIndex(content, []byte("?>")); pos > 0 {
		return content[:pos+2]
	}
	return content
}
