package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/state"
	"github.com/urmzd/pira/pkg/web"

	_ "github.com/urmzd/pira/docs"
)

// @title           Pira Station API
// @version         1.0
// @description     Read-only status and event log of a Pira field station

// @BasePath  /
// @schemes   http

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	addr := flag.String("addr", ":80", "Listen address")
	dir := flag.String("dir", "/data", "Directory served as static files")
	statePath := flag.String("state", "/data/state.json", "Supervisor state snapshot")
	dbPath := flag.String("db", "", "Station database; the event log endpoint is disabled when empty")
	maxAge := flag.Duration("max-age", 5*time.Minute, "Snapshot age after which health reports stale")
	flag.Parse()

	opts := []web.Option{web.WithMaxAge(*maxAge)}

	if *dbPath != "" {
		database, err := db.OpenReadOnly(*dbPath)
		if err != nil {
			log.Warn().Err(err).Str("path", *dbPath).Msg("Event log unavailable")
		} else {
			defer func() {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("Failed to close database")
				}
			}()
			opts = append(opts, web.WithEventLog(database.Entries()))
		}
	}

	router := web.NewRouter(*dir, state.NewStore(*statePath), opts...)

	log.Info().Str("address", *addr).Str("dir", *dir).Msg("Starting web server")

	if err := router.Run(*addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
