package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DisplayNameField is the key under which the geocoder's full address string
// is kept in a PlaceResponse.
const DisplayNameField = "DisplayName"

// Field is one named component of a geocoder response.
type Field struct {
	Name  string
	Value string
}

// OrderedFields is a string map that remembers the order keys were decoded in.
type OrderedFields []Field

// Get returns the value stored under name.
func (f OrderedFields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Has reports whether name is present.
func (f OrderedFields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// UnmarshalJSON decodes a flat JSON object, keeping key order. Non-string
// values are kept in their JSON text form.
func (f *OrderedFields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("models: expected object, got %v", tok)
	}

	fields := OrderedFields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = strings.TrimSpace(string(raw))
		}
		fields = append(fields, Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = fields
	return nil
}

// MarshalJSON writes the fields as a JSON object in their stored order.
func (f OrderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Envelope is the normalized geocoder response that is stored in the cache.
type Envelope struct {
	DisplayName string        `json:"display_name,omitempty"`
	Address     OrderedFields `json:"address,omitempty"`
	GeoError    string        `json:"geoError,omitempty"`
}

// envelopeIn also accepts the legacy DisplayName key and the provider's raw
// error field.
type envelopeIn struct {
	DisplayName       *string         `json:"display_name"`
	LegacyDisplayName *string         `json:"DisplayName"`
	Address           OrderedFields   `json:"address"`
	Error             json.RawMessage `json:"error"`
	GeoError          json.RawMessage `json:"geoError"`
}

// PlaceResponse is the parsed form of an Envelope: DisplayName first (when
// present), followed by the address components in response order.
type PlaceResponse struct {
	Fields OrderedFields
	Error  string
}

// ParsePlaceResponse decodes a stored or freshly fetched envelope.
func ParsePlaceResponse(data string) (*PlaceResponse, error) {
	var in envelopeIn
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, fmt.Errorf("models: failed to parse place response: %w", err)
	}

	resp := &PlaceResponse{}
	switch {
	case len(in.Error) > 0:
		resp.Error = rawText(in.Error)
	case len(in.GeoError) > 0:
		resp.Error = rawText(in.GeoError)
	}

	display := in.DisplayName
	if display == nil {
		display = in.LegacyDisplayName
	}
	if display != nil {
		resp.Fields = append(resp.Fields, Field{Name: DisplayNameField, Value: *display})
	}
	resp.Fields = append(resp.Fields, in.Address...)
	return resp, nil
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// PlaceNameFilter selects which components make up a composed place name.
type PlaceNameFilter int

const (
	// FilterNone joins every address component except the country code.
	FilterNone PlaceNameFilter = iota
	// FilterMinimal joins every component except the country code, dropping
	// county when a city is present.
	FilterMinimal
	// FilterStandard is site, city, state and country (home country omitted).
	FilterStandard
	// FilterDetailed orders components from country down to site.
	FilterDetailed
)

var filterNames = map[PlaceNameFilter]string{
	FilterNone:     "none",
	FilterMinimal:  "minimal",
	FilterStandard: "standard",
	FilterDetailed: "detailed",
}

func (f PlaceNameFilter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PlaceNameFilter(%d)", int(f))
}

// ParsePlaceNameFilter maps a case-insensitive name to a filter.
func ParsePlaceNameFilter(s string) (PlaceNameFilter, error) {
	for f, name := range filterNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return FilterStandard, fmt.Errorf("models: unknown place name filter %q", s)
}

// Place is a composed place name along with the components picked out while
// composing it.
type Place struct {
	Name     string `json:"placename"`
	SiteName string `json:"site,omitempty"`
	City     string `json:"city,omitempty"`
	County   string `json:"county,omitempty"`
	Country  string `json:"country,omitempty"`
}
