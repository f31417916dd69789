package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"LineBot/internal/model"
)

// Environment overrides, typically kept in a .env file next to the binary.
const (
	EnvMQTTBroker   = "LINEBOT_MQTT_BROKER"
	EnvMQTTUsername = "LINEBOT_MQTT_USERNAME"
	EnvMQTTPassword = "LINEBOT_MQTT_PASSWORD"
	EnvNwkSKey      = "LINEBOT_LORAWAN_NWKSKEY"
	EnvAppSKey      = "LINEBOT_LORAWAN_APPSKEY"
	EnvLogLevel     = "LINEBOT_LOG_LEVEL"
)

// LoadConfig overlays the YAML file at path onto the defaults, applies
// environment overrides (after loading envFile when it exists) and validates
// the result. An empty path keeps the defaults.
func LoadConfig(path, envFile string) (model.Config, error) {
	cfg := model.DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	ApplyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv copies non-empty environment values into cfg.
func ApplyEnv(cfg *model.Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telemetry.MQTT.Broker, EnvMQTTBroker)
	set(&cfg.Telemetry.MQTT.Username, EnvMQTTUsername)
	set(&cfg.Telemetry.MQTT.Password, EnvMQTTPassword)
	set(&cfg.Telemetry.LoRa.LoRaWAN.NwkSKey, EnvNwkSKey)
	set(&cfg.Telemetry.LoRa.LoRaWAN.AppSKey, EnvAppSKey)
	set(&cfg.Log.Level, EnvLogLevel)
}
