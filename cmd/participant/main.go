package main

import (
	"context"
	"math/rand"
	"net/url"
	"time"

	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/com"
	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/os"
	"github.com/korobochka/social/pkg/rtc"
	"github.com/korobochka/social/pkg/session"
)

var Version = "?"

// logSink renders the room into the log. The headless participant has
// no screen; this binary exists for soak testing relay deployments and
// as the reference wiring of the orchestrator.
type logSink struct {
	log *logger.Logger
}

func (s *logSink) UpdateParticipant(info api.ParticipantInfo) {
	s.log.Debug().Msgf("participant %v at (%v,%v) sharing=%v",
		info.Id, info.Location.X, info.Location.Y, info.SharingScreen)
}

func (s *logSink) RemoveParticipant(id string) {
	s.log.Debug().Msgf("participant %v left", id)
}

func (s *logSink) ProximityChanged(id string, closeness float64) {
	s.log.Debug().Msgf("closeness to %v is %.2f", id, closeness)
}

func (s *logSink) TrackReceived(peer, channel string, _ any) {
	s.log.Info().Msgf("media from %v on [%v]", peer, channel)
}

func (s *logSink) TrackEnded(peer, channel string) {
	s.log.Info().Msgf("media from %v on [%v] gone", peer, channel)
}

func main() {
	conf := config.NewParticipantConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Participant.Debug, "p", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	addr, err := url.Parse(conf.Participant.Relay)
	if err != nil {
		log.Fatal().Err(err).Msgf("bad relay address %v", conf.Participant.Relay)
	}
	q := addr.Query()
	q.Set("roomId", conf.Participant.Room)
	addr.RawQuery = q.Encode()

	client, err := com.NewConnector(com.WithTag("participant")).NewClient(*addr, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay connection failed")
	}

	apiFactory, err := rtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init failed")
	}

	sink := &logSink{log: log}
	sess := session.New(client, rtc.NewFactory(apiFactory, sink, log), sink, conf.Proximity, log)
	client.OnPacket(sess.HandlePacket)
	sess.Start()
	client.Listen()

	ctx, cancel := context.WithCancel(context.Background())
	if walk := conf.Participant.Walk; walk.Enabled {
		go func() {
			t := time.NewTicker(walk.Interval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					sess.Move(
						(rand.Float64()*2-1)*walk.MaxStep,
						(rand.Float64()*2-1)*walk.MaxStep,
					)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	select {
	case <-os.ExpectTermination():
	case <-client.Wait():
		log.Info().Msg("relay connection lost")
	}
	cancel()
	sess.Stop()
	client.Close()
}
