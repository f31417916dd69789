// Package parser converts telemetry messages to and from their wire formats.
//
// JSON telemetry (MQTT, websocket, journal):
//
//	{"speed":12.5,"distance":340.2,"imu":{"yaw":141.0},"ultra_cm":35.1,"state":"LINE"}
//
// CSV telemetry (LoRa, where airtime is scarce):
//
//	SPEED,DISTANCE,YAW,ULTRA_CM,STATE
package parser

import (
	"fmt"

	"LineBot/internal/model"
)

// Parser defines a generic interface for encoding and decoding telemetry.
type Parser interface {
	EncodeTelemetry(t model.Telemetry) (string, error)
	DecodeTelemetry(s string) (model.Telemetry, error)
}

// ForFormat returns the parser registered for a wire format name.
func ForFormat(name string) (Parser, error) {
	switch name {
	case "csv":
		return NewCSVParser(), nil
	case "json", "":
		return NewJSONParser(), nil
	}
	return nil, fmt.Errorf("unknown wire format %q", name)
}
