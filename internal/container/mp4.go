package container

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	boxHeaderSize = 8
	uuidSize      = 16
)

// xmpUUID is the identifier Adobe assigns to the XMP uuid box. It is only
// used to choose between several uuid boxes.
var xmpUUID = []byte{
	0xBE, 0x7A, 0xCF, 0xCB, 0x97, 0xA9, 0x42, 0xE8,
	0x9C, 0x71, 0x99, 0x94, 0x91, 0xE3, 0xAF, 0xAC,
}

// TopLevelBoxes lists the sibling boxes at the root of an MP4/QuickTime
// stream. A box whose declared length cannot hold its own header, or runs
// past the end of the stream, ends the walk with ErrNotFound.
func TopLevelBoxes(r io.ReadSeeker) ([]Block, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, ErrNotFound
	}

	var boxes []Block
	var pos int64
	for pos+boxHeaderSize <= end {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return nil, ErrNotFound
		}
		var hdr [boxHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, ErrNotFound
		}

		length := int64(binary.BigEndian.Uint32(hdr[0:4]))
		headerLen := int64(boxHeaderSize)
		if length == 1 {
			var ext [8]byte
			if _, err := io.ReadFull(r, ext[:]); err != nil {
				return nil, ErrNotFound
			}
			length = int64(binary.BigEndian.Uint64(ext[:]))
			headerLen += 8
		}
		if length < headerLen || length > end-pos {
			return nil, ErrNotFound
		}

		boxes = append(boxes, Block{Type: string(hdr[4:8]), Offset: pos, Length: length})
		pos += length
	}
	return boxes, nil
}

// FindMP4XMP returns the payload of the uuid box holding XMP. When several
// uuid boxes exist the one tagged with the XMP identifier wins, otherwise
// the first is used.
func FindMP4XMP(r io.ReadSeeker) ([]byte, error) {
	boxes, err := TopLevelBoxes(r)
	if err != nil {
		return nil, err
	}

	var chosen *Block
	for i := range boxes {
		box := &boxes[i]
		if box.Type != "uuid" || box.Length < boxHeaderSize+uuidSize {
			continue
		}
		id, err := readAt(r, box.Offset+boxHeaderSize, uuidSize)
		if err != nil {
			return nil, ErrNotFound
		}
		if bytes.Equal(id, xmpUUID) {
			chosen = box
			break
		}
		if chosen == nil {
			chosen = box
		}
	}
	if chosen == nil {
		return nil, ErrNotFound
	}

	payload, err := readAt(r, chosen.Offset+boxHeaderSize+uuidSize, chosen.Length-boxHeaderSize-uuidSize)
	if err != nil {
		return nil, ErrNotFound
	}
	return payload, nil
}

func readAt(r io.ReadSeeker, offset, n int64) ([]byte, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
