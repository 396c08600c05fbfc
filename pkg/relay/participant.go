package relay

import (
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/logger"
)

// Messenger is the outbound half of a participant connection.
type Messenger interface {
	Send(t api.PT, payload any) error
	Route(p api.In) error
	Close()
}

// Participant is the authoritative server-side state of one
// connected client. Owned by its Room; mirrored read-only on clients.
type Participant struct {
	id       string
	conn     Messenger
	location api.Vector
	sharing  bool
	log      *logger.Logger
}

func NewParticipant(id string, conn Messenger, log *logger.Logger) *Participant {
	return &Participant{
		id:   id,
		conn: conn,
		log:  log.Extend(log.With().Str("pid", id)),
	}
}

func (p *Participant) Id() string { return p.id }

func (p *Participant) Info() api.ParticipantInfo {
	return api.ParticipantInfo{Id: p.id, Location: p.location, SharingScreen: p.sharing}
}

func (p *Participant) send(t api.PT, payload any) {
	if err := p.conn.Send(t, payload); err != nil {
		p.log.Error().Err(err).Msgf("send %v", t)
	}
}

func (p *Participant) route(in api.In) {
	if err := p.conn.Route(in); err != nil {
		p.log.Error().Err(err).Msgf("route %v", in.T)
	}
}
