package main

import (
	"context"

	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/os"
	"github.com/korobochka/social/pkg/relay"
)

var Version = "?"

func main() {
	conf := config.NewRelayConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Relay.Debug, "r", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	r := relay.New(conf, log)
	if err := r.Start(); err != nil {
		log.Fatal().Err(err).Msg("relay start failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := r.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
