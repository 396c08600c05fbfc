package relay

import (
	"math/rand"
	"sync"

	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
)

// Room holds the authoritative participant mapping for one key.
// All mutation goes through the room mutex; broadcasts are queued to
// per-participant sockets while it is held, so every participant
// observes updates in the same order.
type Room struct {
	id        string
	width     float64
	height    float64
	spawnBand float64

	mu           sync.Mutex
	participants map[string]*Participant

	log *logger.Logger
}

func NewRoom(id string, conf config.Room, log *logger.Logger) *Room {
	band := conf.SpawnBand
	if band > conf.Height {
		band = conf.Height
	}
	return &Room{
		id:           id,
		width:        conf.Width,
		height:       conf.Height,
		spawnBand:    band,
		participants: make(map[string]*Participant, 10),
		log:          log.Extend(log.With().Str("room", id)),
	}
}

func (r *Room) Id() string { return r.id }

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *Room) IsEmpty() bool { return r.Size() == 0 }

// Join adds a participant, sends it the full current roster and spawns
// it at a random location inside the spawn band. The spawn is a regular
// move, so the joiner sees its own first update like everybody else.
func (r *Room) Join(id string, conn Messenger) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := NewParticipant(id, conn, r.log)
	r.participants[id] = p
	p.send(api.Init, api.InitRoom{
		RoomId:  r.id,
		Id:      id,
		Width:   r.width,
		Height:  r.height,
		Clients: r.roster(),
	})
	r.move(p, api.Vector{X: rand.Float64() * r.width, Y: rand.Float64() * r.spawnBand})
	return p
}

// Leave removes the participant and tells the room; reports whether
// the room is now empty.
func (r *Room) Leave(p *Participant) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, p.id)
	r.broadcast(api.RemoveParticipant, p.id)
	return len(r.participants) == 0
}

// HandlePacket processes one packet from p. Malformed payloads are
// logged and dropped; they never affect other participants.
func (r *Room) HandlePacket(p *Participant, in api.In) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch in.T {
	case api.Move:
		rq := api.Unwrap[api.MoveRequest](in.Payload)
		if rq == nil {
			p.log.Warn().Msg("malformed move")
			return
		}
		r.move(p, p.location.Add(rq.OffsetX, rq.OffsetY))
	case api.Teleport:
		rq := api.Unwrap[api.TeleportRequest](in.Payload)
		if rq == nil {
			p.log.Warn().Msg("malformed teleport")
			return
		}
		r.move(p, api.Vector{X: rq.X, Y: rq.Y})
	case api.Screenshare:
		rq := api.Unwrap[api.ScreenshareRequest](in.Payload)
		if rq == nil {
			p.log.Warn().Msg("malformed screenshare")
			return
		}
		p.sharing = rq.SharingScreen
		r.broadcast(api.UpdateParticipant, p.Info())
	case api.Offer, api.Answer:
		rq := api.Unwrap[api.Negotiation](in.Payload)
		if rq == nil {
			p.log.Warn().Msgf("malformed %v", in.T)
			return
		}
		// forwarded verbatim
		r.relay(p, in.T, rq.To, in)
	case api.IceCandidate:
		rq := api.Unwrap[api.Candidate](in.Payload)
		if rq == nil {
			p.log.Warn().Msg("malformed candidate")
			return
		}
		r.relayCandidate(p, rq)
	default:
		p.log.Debug().Msgf("unhandled packet %v", in.T)
	}
}

// move clamps the location to the room bounds, each axis
// independently, and broadcasts the resulting state to everyone,
// sender included.
func (r *Room) move(p *Participant, location api.Vector) {
	location.X = clamp(location.X, 0, r.width)
	location.Y = clamp(location.Y, 0, r.height)
	p.location = location
	r.broadcast(api.UpdateParticipant, p.Info())
}

// relay forwards a negotiation packet to its target; an unknown target
// (stale or departed id) drops the message with no error to the sender.
func (r *Room) relay(from *Participant, t api.PT, to string, in api.In) {
	target, ok := r.participants[to]
	if !ok {
		from.log.Debug().Msgf("%v target %v is gone", t, to)
		return
	}
	packetsRelayed.WithLabelValues(t.String()).Inc()
	target.route(in)
}

func (r *Room) relayCandidate(from *Participant, rq *api.Candidate) {
	target, ok := r.participants[rq.To]
	if !ok {
		from.log.Debug().Msgf("candidate target %v is gone", rq.To)
		return
	}
	packetsRelayed.WithLabelValues(api.IceCandidate.String()).Inc()
	target.send(api.IceCandidate, api.Candidate{
		From:         from.id,
		ConnectionId: rq.ConnectionId,
		Candidate:    rq.Candidate,
	})
}

func (r *Room) broadcast(t api.PT, payload any) {
	for _, p := range r.participants {
		p.send(t, payload)
	}
}

func (r *Room) roster() []api.ParticipantInfo {
	roster := make([]api.ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, p.Info())
	}
	return roster
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
