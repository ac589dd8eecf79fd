package main

import (
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/runwatch/pkg/daemon"
)

func main() {
	d, err := daemon.NewDaemon()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating watcher daemon")
	}

	if err := d.Start(); err != nil {
		log.Fatal().Err(err).Msg("error starting watcher daemon")
	}
	log.Info().Msg("Watcher stopped")
}
