// Package main is the robot entry point. It loads the configuration, builds
// the hardware (or simulator), telemetry sinks and control loop, and runs
// until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"LineBot/internal/core"
	"LineBot/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional environment file")
	simulate := flag.Bool("sim", false, "run against simulated hardware")
	mode := flag.String("mode", "", "behavior or heading (overrides config)")
	level := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	util.SetupLogger("info", true)
	cfg, err := core.LoadConfig(*cfgPath, *envFile)
	if err != nil {
		util.Error("load config: %v", err)
		os.Exit(1)
	}
	if *simulate {
		cfg.Simulate = true
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if err := cfg.Validate(); err != nil {
		util.Error("invalid flags: %v", err)
		os.Exit(2)
	}
	util.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)
	util.Info("using config %s (mode=%s sim=%t)", *cfgPath, cfg.Mode, cfg.Simulate)

	sys, err := core.NewSystem(cfg)
	if err != nil {
		util.Error("failed to create system: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := sys.StartAll(ctx); err != nil {
		util.Error("failed to start system: %v", err)
		os.Exit(1)
	}
	<-ctx.Done()

	util.Info("shutting down")
	if err := sys.StopAll(); err != nil {
		util.Error("%v", err)
		os.Exit(1)
	}
	util.Info("stopped cleanly")
}
