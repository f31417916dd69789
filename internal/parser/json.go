package parser

import (
	"encoding/json"

	"LineBot/internal/model"
)

// JSONParser implements Parser using JSON serialization.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// EncodeTelemetry encodes a snapshot into JSON.
func (p *JSONParser) EncodeTelemetry(t model.Telemetry) (string, error) {
	b, err := json.Marshal(t)
	return string(b), err
}

// DecodeTelemetry decodes a JSON snapshot.
func (p *JSONParser) DecodeTelemetry(s string) (model.Telemetry, error) {
	var t model.Telemetry
	err := json.Unmarshal([]byte(s), &t)
	return t, err
}
