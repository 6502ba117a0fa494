// Package xmp pulls keywords, the creation date and GPS coordinates out of
// an XMP packet.
package xmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"geomedia-api/internal/models"
)

// Namespace URIs of the schemas read from a packet. Prefixes in the document
// do not matter, so both xmp: and xap: resolve to NSXMP.
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSExif = "http://ns.adobe.com/exif/1.0/"
	NSXMP  = "http://ns.adobe.com/xap/1.0/"
	NSTiff = "http://ns.adobe.com/tiff/1.0/"
	NSDC   = "http://purl.org/dc/elements/1.1/"
)

// CreateDateLayout is the only accepted xmp:CreateDate form.
const CreateDateLayout = "2006-01-02T15:04:05"

// Metadata holds the fields read from one packet. Location is models.None
// unless both GPS axes parsed.
type Metadata struct {
	Keywords    []string
	CreatedTime time.Time
	Location    models.Location
}

// HasCreatedTime reports whether xmp:CreateDate was present and valid.
func (m *Metadata) HasCreatedTime() bool {
	return !m.CreatedTime.IsZero()
}

// Parse reads an XMP packet. A malformed document still returns whatever
// fields were read before the error, together with that error.
func Parse(data []byte) (*Metadata, error) {
	p := &parser{}
	err := p.run(xml.NewDecoder(bytes.NewReader(data)))

	md := &Metadata{Keywords: p.keywords, Location: models.None}
	if md.Keywords == nil {
		md.Keywords = []string{}
	}
	if p.createDate != "" {
		if t, ok := ParseCreateDate(p.createDate); ok {
			md.CreatedTime = t
		}
	}
	if p.latitude != "" && p.longitude != "" {
		lat, latErr := ParseGPSCoordinate(p.latitude)
		lon, lonErr := ParseGPSCoordinate(p.longitude)
		if latErr == nil && lonErr == nil {
			md.Location = models.NewLocation(lat, lon)
		}
	}

	if err != nil {
		return md, fmt.Errorf("xmp: malformed packet: %w", err)
	}
	return md, nil
}

type parser struct {
	stack      []xml.Name
	text       strings.Builder
	keywords   []string
	createDate string
	latitude   string
	longitude  string
}

func (p *parser) run(dec *xml.Decoder) error {
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.stack = append(p.stack, t.Name)
			p.text.Reset()
			for _, attr := range t.Attr {
				p.capture(attr.Name, attr.Value)
			}
		case xml.CharData:
			p.text.Write(t)
		case xml.EndElement:
			value := strings.TrimSpace(p.text.String())
			if p.inSubjectBag() {
				p.keywords = append(p.keywords, value)
			} else {
				p.capture(t.Name, value)
			}
			if len(p.stack) > 0 {
				p.stack = p.stack[:len(p.stack)-1]
			}
			p.text.Reset()
		}
	}
}

// inSubjectBag reports whether the element being closed is a direct child of
// dc:subject/rdf:Bag.
func (p *parser) inSubjectBag() bool {
	n := len(p.stack)
	if n < 3 {
		return false
	}
	bag, subject := p.stack[n-2], p.stack[n-3]
	return bag.Space == NSRDF && bag.Local == "Bag" &&
		subject.Space == NSDC && subject.Local == "subject"
}

func (p *parser) capture(name xml.Name, value string) {
	if value == "" {
		return
	}
	switch {
	case name.Space == NSXMP && name.Local == "CreateDate":
		p.createDate = value
	case name.Space == NSExif && name.Local == "GPSLatitude":
		p.latitude = value
	case name.Space == NSExif && name.Local == "GPSLongitude":
		p.longitude = value
	}
}

// ParseCreateDate parses the value as UTC and returns it in local time.
// Only the exact layout is accepted; fractional seconds are rejected.
func ParseCreateDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != len(CreateDateLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(CreateDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.Local(), true
}

// ParseGPSCoordinate converts the XMP "D,MM.mmmmR" form (integer degrees,
// decimal minutes, hemisphere letter) into signed decimal degrees.
func ParseGPSCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	comma := strings.Index(s, ",")
	if comma < 1 || len(s) < comma+3 {
		return 0, fmt.Errorf("xmp: invalid gps value %q", s)
	}

	degrees, err := strconv.Atoi(s[:comma])
	if err != nil {
		return 0, fmt.Errorf("xmp: invalid gps degrees %q: %w", s, err)
	}
	minutes, err := strconv.ParseFloat(s[comma+1:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("xmp: invalid gps minutes %q: %w", s, err)
	}

	v := float64(degrees) + minutes/60
	switch s[len(s)-1] {
	case 'S', 'W':
		v = -v
	case 'N', 'E':
	default:
		return 0, fmt.Errorf("xmp: invalid gps hemisphere %q", s)
	}
	return v, nil
}
