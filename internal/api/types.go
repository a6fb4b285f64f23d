package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// FlexString accepts a JSON string, number or null and keeps its text form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw text value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// ActivityRequest is the JSON form of a create or update request.
type ActivityRequest struct {
	Latitude    FlexString `json:"latitude,omitempty"`
	Longitude   FlexString `json:"longitude,omitempty"`
	Description string     `json:"description,omitempty"`
	Timestamp   string     `json:"timestamp,omitempty"`
}

// DeleteResponse confirms a deleted activity.
type DeleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// InfoResponse is the response from GET /.
type InfoResponse struct {
	Message       string            `json:"message"`
	Version       string            `json:"version"`
	Endpoints     map[string]string `json:"endpoints"`
	ActivityCount int               `json:"activity_count"`
}
