package models

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used for defaulted timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Activity is one geotagged entry with an optional attached image.
// ImageURL and ImagePath are set and cleared together.
type Activity struct {
	ID          string  `json:"id" yaml:"id"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`
	Description *string `json:"description" yaml:"description"`
	Timestamp   string  `json:"timestamp" yaml:"timestamp"`
	ImageURL    *string `json:"imageUrl" yaml:"image_url"`
	ImagePath   *string `json:"imagePath" yaml:"image_path"`
}

// HasImage reports whether the activity references a stored image.
func (a Activity) HasImage() bool {
	return a.ImagePath != nil && *a.ImagePath != ""
}

// Location returns the "<latitude>,<longitude>" form used for search.
func (a Activity) Location() string {
	return FormatCoordinate(a.Latitude) + "," + FormatCoordinate(a.Longitude)
}

// SetImage installs an image reference pair.
func (a *Activity) SetImage(url, path string) {
	a.ImageURL = &url
	a.ImagePath = &path
}

// Clone returns a copy that shares no pointers with a.
func (a Activity) Clone() Activity {
	out := a
	out.Description = cloneString(a.Description)
	out.ImageURL = cloneString(a.ImageURL)
	out.ImagePath = cloneString(a.ImagePath)
	return out
}

// FormatCoordinate renders a coordinate in its shortest decimal form (1 -> "1", 2.5 -> "2.5").
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NowTimestamp formats t the way defaulted activity timestamps are stored.
func NowTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// timestampLayouts are the ISO-8601 forms accepted for ordering. Values
// without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an activity timestamp in one of the ISO-8601 date or
// date-time forms.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
