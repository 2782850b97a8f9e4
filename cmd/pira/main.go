package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/config"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", os.Getenv("PIRA_CONFIG"), "Optional YAML file with settings; the environment takes precedence")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Warn().Str("level", *logLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Load configuration
	env := config.Layered{config.OSEnv{}}
	if *configPath != "" {
		fileEnv, err := config.LoadFile(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("Failed to load config file, using environment only")
		} else {
			env = append(env, fileEnv)
		}
	}
	cfg := config.Load(env)

	log.Info().
		Strs("modules", cfg.Modules).
		Float64("shutdown_voltage", cfg.ShutdownVoltage).
		Dur("loop_delay", cfg.LoopDelay).
		Str("wifi_mode", string(cfg.WifiMode)).
		Str("sleep_mode", string(cfg.SleepMode)).
		Stringer("debug_mode", cfg.DebugMode).
		Bool("fleet", cfg.FleetEnabled()).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newStation(cfg).run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Supervisor failed")
	}

	log.Info().Msg("Shutting down...")
}
