package models

import "encoding/json"

// WeatherRecord is the stored combination of the caller's request metadata and
// the provider's current-weather payload. Records are never mutated after insert.
type WeatherRecord struct {
	ID       string          `json:"-"`
	Date     string          `json:"date"`
	Location string          `json:"location"`
	Notes    string          `json:"notes"`
	Weather  json.RawMessage `json:"weather"`
}
