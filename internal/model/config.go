// Package model defines the configuration tree loaded from configs/config.yml.
package model

import (
	"errors"
	"fmt"
	"time"

	"LineBot/internal/barcode"
	"LineBot/internal/control"
	"LineBot/internal/maneuver"
	"LineBot/internal/obstacle"
)

// Run modes.
const (
	ModeBehavior = "behavior"
	ModeHeading  = "heading"
)

// Capture modes.
const (
	CapturePoll      = "poll"
	CaptureInterrupt = "interrupt"
)

// Config is the root of the YAML configuration.
type Config struct {
	Mode      string                  `yaml:"mode"`
	Simulate  bool                    `yaml:"simulate"`
	Log       LogConfig               `yaml:"log"`
	Robot     RobotConfig             `yaml:"robot"`
	Capture   CaptureConfig           `yaml:"capture"`
	Barcode   barcode.Config          `yaml:"barcode"`
	Heading   control.HeadingConfig   `yaml:"heading_pid"`
	Line      control.LineConfig      `yaml:"line_pid"`
	Turn      maneuver.TurnConfig     `yaml:"turn"`
	Junction  maneuver.JunctionConfig `yaml:"junction"`
	Scan      obstacle.ScanConfig     `yaml:"scan"`
	Avoid     obstacle.AvoidConfig    `yaml:"avoid"`
	Hardware  HardwareConfig          `yaml:"hardware"`
	Telemetry TelemetryConfig         `yaml:"telemetry"`
}

// LogConfig selects the log level and output style.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RobotConfig holds the behavior loop timing and policy.
type RobotConfig struct {
	Tick              time.Duration `yaml:"tick"`
	ObstaclePeriod    time.Duration `yaml:"obstacle_period"`
	BarcodePeriod     time.Duration `yaml:"barcode_period"`
	JunctionPeriod    time.Duration `yaml:"junction_period"`
	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
	NearMinCM         float64       `yaml:"near_min_cm"`
	NearMaxCM         float64       `yaml:"near_max_cm"`
	AvoidOnce         bool          `yaml:"avoid_once"`
	DefaultTurn       string        `yaml:"default_turn"`
	ObstacleHalt      time.Duration `yaml:"obstacle_halt"`
	ScanHalt          time.Duration `yaml:"scan_halt"`
	ScanNudge         maneuver.Step `yaml:"scan_nudge"`

	HeadingPeriod     time.Duration `yaml:"heading_period"`
	HeadingReport     time.Duration `yaml:"heading_report"`
	CalibrateSamples  int           `yaml:"calibrate_samples"`
	CalibrateInterval time.Duration `yaml:"calibrate_interval"`
}

// CaptureConfig selects how barcode edges reach the capture buffer.
type CaptureConfig struct {
	Mode         string        `yaml:"mode"`
	Capacity     int           `yaml:"capacity"`
	Quiet        time.Duration `yaml:"quiet"`
	MinDurations int           `yaml:"min_durations"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HardwareConfig maps the parts onto Raspberry Pi pins and buses.
type HardwareConfig struct {
	LeftPWM   int `yaml:"left_pwm"`
	RightPWM  int `yaml:"right_pwm"`
	LeftIn1   int `yaml:"left_in1"`
	LeftIn2   int `yaml:"left_in2"`
	RightIn1  int `yaml:"right_in1"`
	RightIn2  int `yaml:"right_in2"`
	MotorFreq int `yaml:"motor_freq"`

	I2CBus       int   `yaml:"i2c_bus"`
	ServoAddr    uint8 `yaml:"servo_addr"` // PCA9685
	ServoChannel int   `yaml:"servo_channel"`
	ServoMinUs   int   `yaml:"servo_min_us"`
	ServoMaxUs   int   `yaml:"servo_max_us"`
	AccelAddr    uint8 `yaml:"accel_addr"`
	MagAddr      uint8 `yaml:"mag_addr"`
	ADCAddr      uint8 `yaml:"adc_addr"` // ADS1115
	ADCChannel   int   `yaml:"adc_channel"`

	TrigPin string `yaml:"trig_pin"`
	EchoPin string `yaml:"echo_pin"`

	IRPin        int    `yaml:"ir_pin"`
	GPIOChip     string `yaml:"gpio_chip"`
	LeftEncoder  int    `yaml:"left_encoder"`
	RightEncoder int    `yaml:"right_encoder"`
}

// TelemetryConfig lists the telemetry sinks.
type TelemetryConfig struct {
	WireFormat string        `yaml:"wire_format"` // csv or json, for the LoRa link
	MQTT       MQTTConfig    `yaml:"mqtt"`
	LoRa       LoRaConfig    `yaml:"lora"`
	WebSocket  HubConfig     `yaml:"websocket"`
	Journal    JournalConfig `yaml:"journal"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	BaseTopic      string        `yaml:"base_topic"`
	QoS            byte          `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LoRaConfig configures the serial LoRa uplink.
type LoRaConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Virtual     bool          `yaml:"virtual"` // create a socat pty pair, Device is our end
	VirtualPeer string        `yaml:"virtual_peer"`
	LoRaWAN     LoRaWANConfig `yaml:"lorawan"`
}

// LoRaWANConfig enables LoRaWAN framing of uplinks. Keys are hex strings.
type LoRaWANConfig struct {
	Enabled bool   `yaml:"enabled"`
	DevAddr string `yaml:"dev_addr"`
	NwkSKey string `yaml:"nwk_s_key"`
	AppSKey string `yaml:"app_s_key"`
	FPort   uint8  `yaml:"f_port"`
}

// HubConfig configures the websocket live view.
type HubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// JournalConfig configures the bbolt telemetry journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration that runs on the reference chassis.
func DefaultConfig() Config {
	return Config{
		Mode: ModeBehavior,
		Log:  LogConfig{Level: "info", Pretty: true},
		Robot: RobotConfig{
			Tick:              10 * time.Millisecond,
			ObstaclePeriod:    300 * time.Millisecond,
			BarcodePeriod:     100 * time.Millisecond,
			JunctionPeriod:    50 * time.Millisecond,
			TelemetryInterval: 2 * time.Second,
			NearMinCM:         2,
			NearMaxCM:         20,
			AvoidOnce:         true,
			DefaultTurn:       barcode.TurnRight,
			ObstacleHalt:      300 * time.Millisecond,
			ScanHalt:          500 * time.Millisecond,
			ScanNudge:         maneuver.Drive(-30*1.25, -30, 400*time.Millisecond),
			HeadingPeriod:     50 * time.Millisecond,
			HeadingReport:     500 * time.Millisecond,
			CalibrateSamples:  20,
			CalibrateInterval: 50 * time.Millisecond,
		},
		Capture: CaptureConfig{
			Mode:         CapturePoll,
			Capacity:     256,
			Quiet:        50 * time.Millisecond,
			MinDurations: 9,
			PollInterval: 200 * time.Microsecond,
		},
		Barcode:  barcode.DefaultConfig(),
		Heading:  control.DefaultHeadingConfig(),
		Line:     control.DefaultLineConfig(),
		Turn:     maneuver.DefaultTurnConfig(),
		Junction: maneuver.DefaultJunctionConfig(),
		Scan:     obstacle.DefaultScanConfig(),
		Avoid:    obstacle.DefaultAvoidConfig(),
		Hardware: HardwareConfig{
			LeftPWM: 12, RightPWM: 13,
			LeftIn1: 5, LeftIn2: 6, RightIn1: 20, RightIn2: 21,
			MotorFreq:    1000,
			I2CBus:       1,
			ServoAddr:    0x40,
			ServoChannel: 0,
			ServoMinUs:   500,
			ServoMaxUs:   2500,
			AccelAddr:    0x19,
			MagAddr:      0x1E,
			ADCAddr:      0x48,
			ADCChannel:   0,
			TrigPin:      "GPIO23",
			EchoPin:      "GPIO24",
			IRPin:        17,
			GPIOChip:     "gpiochip0",
			LeftEncoder:  26,
			RightEncoder: 16,
		},
		Telemetry: TelemetryConfig{
			WireFormat: "json",
			MQTT: MQTTConfig{
				Enabled:        true,
				Broker:         "tcp://localhost:1883",
				ClientID:       "linebot",
				BaseTopic:      "robot/alpha",
				QoS:            1,
				KeepAlive:      60 * time.Second,
				ConnectTimeout: 10 * time.Second,
			},
			LoRa: LoRaConfig{
				Device:      "/dev/serial0",
				Baud:        9600,
				VirtualPeer: "/tmp/ttyLINEBOT1",
				LoRaWAN:     LoRaWANConfig{FPort: 10},
			},
			WebSocket: HubConfig{Enabled: true, Addr: ":10000"},
			Journal:   JournalConfig{Enabled: true, Path: "tmp/telemetry.db"},
		},
	}
}

// Validate rejects configurations the robot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeBehavior, ModeHeading:
	default:
		errs = append(errs, fmt.Errorf("mode %q: want %s or %s", c.Mode, ModeBehavior, ModeHeading))
	}
	switch c.Capture.Mode {
	case CapturePoll, CaptureInterrupt:
	default:
		errs = append(errs, fmt.Errorf("capture.mode %q: want %s or %s", c.Capture.Mode, CapturePoll, CaptureInterrupt))
	}
	if c.Capture.Capacity < c.Capture.MinDurations {
		errs = append(errs, fmt.Errorf("capture.capacity %d below min_durations %d", c.Capture.Capacity, c.Capture.MinDurations))
	}
	for name, d := range map[string]time.Duration{
		"robot.tick":            c.Robot.Tick,
		"robot.obstacle_period": c.Robot.ObstaclePeriod,
		"robot.barcode_period":  c.Robot.BarcodePeriod,
		"robot.junction_period": c.Robot.JunctionPeriod,
		"robot.heading_period":  c.Robot.HeadingPeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	switch c.Robot.DefaultTurn {
	case barcode.TurnLeft, barcode.TurnRight:
	default:
		errs = append(errs, fmt.Errorf("robot.default_turn %q: want %s or %s", c.Robot.DefaultTurn, barcode.TurnLeft, barcode.TurnRight))
	}
	switch c.Telemetry.WireFormat {
	case "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("telemetry.wire_format %q: want csv or json", c.Telemetry.WireFormat))
	}
	if c.Barcode.WideRatio <= 1 {
		errs = append(errs, errors.New("barcode.wide_ratio must be above 1"))
	}
	return errors.Join(errs...)
}
