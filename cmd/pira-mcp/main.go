package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/db"
	piramcp "github.com/urmzd/pira/pkg/mcp"
	"github.com/urmzd/pira/pkg/state"
)

func main() {
	// Logging must go to stderr, stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	statePath := flag.String("state", config.DefaultStatePath, "Supervisor state snapshot")
	dbPath := flag.String("db", config.DefaultDBPath, "Station database")
	maxAge := flag.Duration("max-age", 5*time.Minute, "Snapshot age after which health reports stale")
	flag.Parse()

	var server *piramcp.Server
	store := state.NewStore(*statePath)

	database, err := db.OpenReadOnly(*dbPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *dbPath).Msg("Event log unavailable")
		server = piramcp.NewServer(store, nil, nil, *maxAge)
	} else {
		defer func() {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()
		log.Info().Str("path", database.Path()).Msg("Database opened")
		server = piramcp.NewServer(store, database.Entries(), database.Boots(), *maxAge)
	}

	log.Info().Msg("Starting MCP server on stdio")

	if err := server.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
