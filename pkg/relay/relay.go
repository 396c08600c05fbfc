// Package relay implements the signaling relay: the authority for
// room and participant state, and the forwarder of directed
// negotiation messages between participants.
package relay

import (
	"context"
	"net/http"

	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/monitoring"
	"github.com/korobochka/social/pkg/network/httpx"
)

type Relay struct {
	conf config.RelayConfig
	hub  *Hub
	log  *logger.Logger

	server     *httpx.Server
	monitoring *monitoring.Monitoring
}

func New(conf config.RelayConfig, log *logger.Logger) *Relay {
	r := &Relay{conf: conf, hub: NewHub(conf, log), log: log}
	if conf.Relay.Monitoring.IsEnabled() {
		r.monitoring = monitoring.New(conf.Relay.Monitoring, "relay", log)
	}
	return r
}

func (r *Relay) Start() error {
	conf := r.conf.Relay.Server
	address := conf.Address
	options := []httpx.Option{httpx.WithLogger(r.log)}
	if conf.Https {
		address = conf.Tls.Address
		options = append(options, httpx.WithTLS(conf.Tls.Domain), httpx.HttpsCert(conf.Tls.Cert, conf.Tls.Key))
	}

	server, err := httpx.NewServer(
		address,
		func(*httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.Handle("/", httpx.FileServer(r.conf.Relay.Frontend))
			h.HandleFunc("/ws", r.hub.handleParticipantConnection)
			return h
		},
		options...,
	)
	if err != nil {
		return err
	}
	r.server = server
	r.server.Run()

	if r.monitoring != nil {
		r.monitoring.Run()
	}
	return nil
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if r.monitoring != nil {
		_ = r.monitoring.Shutdown(ctx)
	}
	return r.server.Stop(ctx)
}
