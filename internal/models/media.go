package models

import "time"

// MediaDetails is the descriptive metadata pulled out of one media file.
type MediaDetails struct {
	Path        string    `json:"path"`
	Location    Location  `json:"-"`
	CreatedTime time.Time `json:"created_time"`
	Keywords    []string  `json:"keywords"`
}

// HasLocation reports whether a real location was found.
func (d *MediaDetails) HasLocation() bool {
	return !d.Location.IsNone()
}
