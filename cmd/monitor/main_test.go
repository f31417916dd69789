package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineBot/internal/model"
	"LineBot/internal/parser"
	"LineBot/internal/telemetry"
)

func TestLineDecoderPlainCSV(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Telemetry.WireFormat = "csv"
	d, err := newLineDecoder(cfg)
	require.NoError(t, err)

	got, err := d.decode("1.00,2.00,3.0,-1.0,WAIT")
	require.NoError(t, err)
	assert.Equal(t, "WAIT", got.State)
	assert.Equal(t, -1.0, got.Range)
}

func TestLineDecoderLoRaWAN(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Telemetry.WireFormat = "json"
	cfg.Telemetry.LoRa.LoRaWAN = model.LoRaWANConfig{
		Enabled: true,
		DevAddr: "26011bda",
		NwkSKey: "2b7e151628aed2a6abf7158809cf4f3c",
		AppSKey: "000102030405060708090a0b0c0d0e0f",
		FPort:   10,
	}
	d, err := newLineDecoder(cfg)
	require.NoError(t, err)

	tx, err := telemetry.NewFramer(cfg.Telemetry.LoRa.LoRaWAN)
	require.NoError(t, err)
	s, err := parser.NewJSONParser().EncodeTelemetry(model.Telemetry{State: "TURN_DONE", Speed: 4})
	require.NoError(t, err)
	b, err := tx.Uplink([]byte(s))
	require.NoError(t, err)

	got, err := d.decode(hex.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, "TURN_DONE", got.State)
	assert.Equal(t, 4.0, got.Speed)

	_, err = d.decode("zz")
	assert.Error(t, err)
}
