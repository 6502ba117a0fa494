package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Location is an immutable latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	none bool
}

// None marks a known absence of location. It equals only itself, never a
// Location built from the same numbers.
var None = Location{Latitude: 1000, Longitude: 1000, none: true}

// NewLocation creates a location from decimal degrees.
func NewLocation(latitude, longitude float64) Location {
	return Location{Latitude: latitude, Longitude: longitude}
}

// IsNone reports whether l is the None sentinel.
func (l Location) IsNone() bool {
	return l.none
}

// Equal reports whether two locations are the same value.
func (l Location) Equal(other Location) bool {
	return l == other
}

func (l Location) String() string {
	if l.none {
		return "[Location: None]"
	}
	return fmt.Sprintf("[Location: Latitude=%v, Longitude=%v]", l.Latitude, l.Longitude)
}

// ToDMS formats the location as degrees/minutes/seconds with whole seconds,
// e.g. `47° 35' 09" N, 122° 19' 43" W`. The None sentinel formats as "".
func (l Location) ToDMS() string {
	return l.format(true)
}

// CacheKey is the DMS form with 14 decimal places of seconds. It is the key
// for every cache layer.
func (l Location) CacheKey() string {
	return l.format(false)
}

func (l Location) format(forHumans bool) string {
	if l.none {
		return ""
	}

	latNS := 'N'
	if l.Latitude < 0 {
		latNS = 'S'
	}
	longEW := 'E'
	if l.Longitude < 0 {
		longEW = 'W'
	}
	return fmt.Sprintf("%s %c, %s %c", dms(l.Latitude, forHumans), latNS, dms(l.Longitude, forHumans), longEW)
}

func dms(v float64, forHumans bool) string {
	v = math.Abs(v)
	degrees := math.Trunc(v)
	minutes := (v - degrees) * 60
	seconds := (minutes - math.Trunc(minutes)) * 60
	minutes = math.Trunc(minutes)

	if forHumans {
		return fmt.Sprintf("%02.0f° %02.0f' %02.0f\"", degrees, minutes, seconds)
	}
	return fmt.Sprintf("%02.0f° %02.0f' %.14f\"", degrees, minutes, seconds)
}

// FromDMS parses the output of ToDMS or CacheKey. Anything unparseable,
// including the empty string, yields None.
func FromDMS(s string) Location {
	if strings.TrimSpace(s) == "" {
		return None
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return None
	}

	latitude, ok := parseDMSAxis(parts[0])
	if !ok {
		return None
	}
	longitude, ok := parseDMSAxis(parts[1])
	if !ok {
		return None
	}
	return NewLocation(latitude, longitude)
}

func parseDMSAxis(s string) (float64, bool) {
	tokens := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == '°' || r == '\'' || r == '"' || r == ' '
	})
	if len(tokens) != 4 {
		return 0, false
	}

	degrees, err := strconv.Atoi(tokens[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(tokens[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return 0, false
	}

	v := float64(degrees) + float64(minutes)/60 + seconds/3600
	switch tokens[3] {
	case "S", "W":
		v = -v
	case "N", "E":
	default:
		return 0, false
	}
	return v, true
}
