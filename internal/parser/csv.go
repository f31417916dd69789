package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"LineBot/internal/model"
)

// CSVParser implements Parser using comma-separated values. Commas in the
// state label are replaced by semicolons.
type CSVParser struct{}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// EncodeTelemetry converts a snapshot into a CSV line.
func (p *CSVParser) EncodeTelemetry(t model.Telemetry) (string, error) {
	state := strings.ReplaceAll(t.State, ",", ";")
	return fmt.Sprintf("%.2f,%.2f,%.1f,%.1f,%s", t.Speed, t.Distance, t.IMU.Yaw, t.Range, state), nil
}

// DecodeTelemetry parses a CSV line.
func (p *CSVParser) DecodeTelemetry(line string) (model.Telemetry, error) {
	fields := strings.SplitN(strings.TrimSpace(line), ",", 5)
	if len(fields) != 5 {
		return model.Telemetry{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	var nums [4]float64
	names := [4]string{"speed", "distance", "yaw", "ultra_cm"}
	for i := range nums {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return model.Telemetry{}, errors.New("invalid " + names[i])
		}
		nums[i] = v
	}
	return model.Telemetry{
		Speed:    nums[0],
		Distance: nums[1],
		IMU:      model.IMUReading{Yaw: nums[2]},
		Range:    nums[3],
		State:    fields[4],
	}, nil
}
