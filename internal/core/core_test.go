package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineBot/internal/barcode"
	"LineBot/internal/capture"
	"LineBot/internal/model"
	"LineBot/internal/robot"
	"LineBot/internal/telemetry"
)

func TestLoadConfigOverlayAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("simulate: true\nrobot:\n  default_turn: LEFT\n"), 0o644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(EnvMQTTBroker+"=tcp://broker.test:1883\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(EnvMQTTBroker) })

	cfg, err := LoadConfig(cfgPath, envPath)
	require.NoError(t, err)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, "LEFT", cfg.Robot.DefaultTurn)
	assert.Equal(t, 10*time.Millisecond, cfg.Robot.Tick)
	assert.Equal(t, "tcp://broker.test:1883", cfg.Telemetry.MQTT.Broker)
}

func TestLoadConfigMissingEnvFileIsFine(t *testing.T) {
	cfg, err := LoadConfig("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, model.ModeBehavior, cfg.Mode)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"), "")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("capture:\n  mode: dma\n"), 0o644))
	_, err = LoadConfig(bad, "")
	assert.ErrorContains(t, err, "capture.mode")
}

func TestApplyEnv(t *testing.T) {
	cfg := model.DefaultConfig()
	env := map[string]string{
		EnvMQTTUsername: "bot",
		EnvMQTTPassword: "secret",
		EnvAppSKey:      "000102030405060708090a0b0c0d0e0f",
		EnvLogLevel:     "debug",
	}
	ApplyEnv(&cfg, func(k string) string { return env[k] })
	assert.Equal(t, "bot", cfg.Telemetry.MQTT.Username)
	assert.Equal(t, "secret", cfg.Telemetry.MQTT.Password)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", cfg.Telemetry.LoRa.LoRaWAN.AppSKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "tcp://localhost:1883", cfg.Telemetry.MQTT.Broker)
}

func simConfig(t *testing.T) model.Config {
	cfg := model.DefaultConfig()
	cfg.Simulate = true
	cfg.Telemetry.MQTT.Enabled = false
	cfg.Telemetry.WebSocket.Enabled = false
	cfg.Telemetry.Journal.Path = filepath.Join(t.TempDir(), "telemetry.db")
	return cfg
}

func TestSimulatedBehaviorRun(t *testing.T) {
	cfg := simConfig(t)
	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	require.NotNil(t, sys.Robot)
	assert.Same(t, sys.Robot, sys.Runner())

	require.NoError(t, sys.StartAll(context.Background()))
	require.Eventually(t, func() bool {
		return sys.HW.Sim.Motor.Current().Left != 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, robot.LineFollowing, sys.Robot.State())
	require.NoError(t, sys.StopAll())
	assert.Zero(t, sys.HW.Sim.Motor.Current())

	j, err := telemetry.OpenJournal(cfg.Telemetry.Journal.Path, zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()
	got, _, err := j.Latest()
	require.NoError(t, err)
	assert.Equal(t, "LINE", got.State)
}

func TestSimulatedHeadingMode(t *testing.T) {
	cfg := simConfig(t)
	cfg.Mode = model.ModeHeading
	cfg.Telemetry.Journal.Enabled = false
	cfg.Robot.CalibrateSamples = 1
	cfg.Robot.CalibrateInterval = time.Millisecond
	cfg.Robot.HeadingPeriod = 5 * time.Millisecond

	sys, err := NewSystem(cfg)
	require.NoError(t, err)
	require.NotNil(t, sys.Heading)
	assert.Nil(t, sys.Robot)

	require.NoError(t, sys.StartAll(context.Background()))
	require.Eventually(t, func() bool {
		return sys.HW.Sim.Motor.Current().Left != 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sys.StopAll())
}

func TestCourseBarcodeForEveryTurn(t *testing.T) {
	dec := barcode.NewDecoder(barcode.DefaultConfig(), nil)
	for _, turn := range []string{barcode.TurnLeft, barcode.TurnRight} {
		code, err := courseBarcode(turn)
		require.NoError(t, err, turn)
		r := dec.Decode(capture.Frame{Durations: code})
		require.True(t, r.Valid, turn)
		assert.Equal(t, turn, r.Payload)
	}
	// LEFT has no check character, RIGHT does.
	left, _ := courseBarcode(barcode.TurnLeft)
	assert.False(t, dec.Decode(capture.Frame{Durations: left}).ChecksumOK)
	right, _ := courseBarcode(barcode.TurnRight)
	assert.True(t, dec.Decode(capture.Frame{Durations: right}).ChecksumOK)
}
