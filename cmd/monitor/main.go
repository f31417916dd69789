// Command monitor prints robot telemetry from the MQTT broker or, like a LoRa
// gateway, from a serial LoRa receiver (optionally LoRaWAN framed).
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"LineBot/internal/core"
	"LineBot/internal/device"
	"LineBot/internal/model"
	"LineBot/internal/parser"
	"LineBot/internal/telemetry"
	"LineBot/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional environment file")
	loraDev := flag.String("lora", "", "read a LoRa serial receiver instead of MQTT (e.g. /tmp/ttyLINEBOT1)")
	flag.Parse()

	util.SetupLogger("info", true)
	cfg, err := core.LoadConfig(*cfgPath, *envFile)
	if err != nil {
		util.Error("load config: %v", err)
		os.Exit(1)
	}
	util.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)
	log := util.Component("monitor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	show := func(src string, t model.Telemetry) {
		fmt.Printf("%-10s %-16s speed=%6.2fcm/s dist=%8.1fcm yaw=%5.1f range=%6.1fcm %s\n",
			src, t.State, t.Speed, t.Distance, t.IMU.Yaw, t.Range, t.Timestamp)
	}

	if *loraDev != "" {
		if err := readLoRa(ctx, *loraDev, cfg, show, log); err != nil {
			util.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	cancel, err := telemetry.Subscribe(cfg.Telemetry.MQTT, func(topic string, t model.Telemetry) { show("mqtt", t) }, log)
	if err != nil {
		util.Error("%v", err)
		os.Exit(1)
	}
	<-ctx.Done()
	cancel()
}

// lineDecoder turns one received line back into telemetry.
type lineDecoder struct {
	enc    parser.Parser
	framer *telemetry.Framer
}

func (d lineDecoder) decode(line string) (model.Telemetry, error) {
	if d.framer == nil {
		return d.enc.DecodeTelemetry(line)
	}
	b, err := hex.DecodeString(line)
	if err != nil {
		return model.Telemetry{}, fmt.Errorf("not a hex frame: %w", err)
	}
	payload, _, err := d.framer.OpenUplink(b)
	if err != nil {
		return model.Telemetry{}, err
	}
	return d.enc.DecodeTelemetry(string(payload))
}

func newLineDecoder(cfg model.Config) (lineDecoder, error) {
	enc, err := parser.ForFormat(cfg.Telemetry.WireFormat)
	if err != nil {
		return lineDecoder{}, err
	}
	d := lineDecoder{enc: enc}
	if cfg.Telemetry.LoRa.LoRaWAN.Enabled {
		if d.framer, err = telemetry.NewFramer(cfg.Telemetry.LoRa.LoRaWAN); err != nil {
			return lineDecoder{}, err
		}
	}
	return d, nil
}

func readLoRa(ctx context.Context, dev string, cfg model.Config, show func(string, model.Telemetry), log zerolog.Logger) error {
	dec, err := newLineDecoder(cfg)
	if err != nil {
		return err
	}
	line, err := device.NewSerialDevice(dev, cfg.Telemetry.LoRa.Baud)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = line.Close()
	}()
	for ctx.Err() == nil {
		s, err := line.ReadLine(0)
		switch {
		case errors.Is(err, device.ErrClosed), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case s == "":
			continue
		}
		t, err := dec.decode(s)
		if err != nil {
			log.Warn().Err(err).Str("line", s).Msg("undecodable line")
			continue
		}
		show("lora", t)
	}
	return nil
}
