// Package session implements the participant-side connection
// orchestrator: it mirrors relay roster broadcasts into reactive
// state, derives per-pair admission from proximity, and drives
// transport negotiation so that the set of live connections always
// converges to what the current positions demand.
package session

import (
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/reactive"
)

// Conn is the outbound half of the relay connection.
type Conn interface {
	Send(t api.PT, payload any) error
}

// Session is one participant's view of one room. All state mutation
// runs on a single event loop goroutine: incoming packets, transport
// callbacks and public API calls are posted onto it, which makes the
// whole orchestration single-threaded and race-free without locks.
type Session struct {
	id     string
	roomId string
	width  float64
	height float64

	conn    Conn
	factory TransportFactory
	sink    RenderSink
	prox    config.Proximity
	log     *logger.Logger

	loop chan func()
	done chan struct{}

	selfLocation *reactive.Observable[api.Vector]
	selfSharing  *reactive.Observable[bool]
	// Media handles compare by identity: a new stream object is a new
	// value even when it carries the same id.
	videoMedia  *reactive.Observable[LocalMedia]
	screenMedia *reactive.Observable[LocalMedia]

	peers map[string]*Peer
	links map[LinkKey]*Link
}

func New(conn Conn, factory TransportFactory, sink RenderSink, prox config.Proximity, log *logger.Logger) *Session {
	same := func(old, new LocalMedia) bool { return old == new }
	return &Session{
		conn:         conn,
		factory:      factory,
		sink:         sink,
		prox:         prox,
		log:          log,
		loop:         make(chan func(), 64),
		done:         make(chan struct{}),
		selfLocation: reactive.NewObservable(api.Vector{}),
		selfSharing:  reactive.NewObservable(false),
		videoMedia:   reactive.NewObservableEq[LocalMedia](nil, same),
		screenMedia:  reactive.NewObservableEq[LocalMedia](nil, same),
		peers:        make(map[string]*Peer),
		links:        make(map[LinkKey]*Link),
	}
}

// Start spins the event loop. Stop ends it.
func (s *Session) Start() { go s.run() }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.loop:
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *Session) Stop() {
	s.post(func() {
		for _, p := range s.peers {
			p.destroy()
		}
		s.peers = map[string]*Peer{}
		s.links = map[LinkKey]*Link{}
		close(s.done)
	})
}

// post schedules fn on the event loop. Safe from any goroutine;
// a no-op once the session stopped.
func (s *Session) post(fn func()) {
	select {
	case s.loop <- fn:
	case <-s.done:
	}
}

func (s *Session) send(t api.PT, payload any) {
	if err := s.conn.Send(t, payload); err != nil {
		s.log.Error().Err(err).Msgf("send %v failed", t)
	}
}

// HandlePacket enqueues one relay packet. Ordering is preserved:
// packets run on the loop in the order they were received.
func (s *Session) HandlePacket(in api.In) {
	s.post(func() { s.route(in) })
}

func (s *Session) route(in api.In) {
	switch in.T {
	case api.Init:
		if r := api.Unwrap[api.InitRoom](in.Payload); r != nil {
			s.handleInit(*r)
		}
	case api.UpdateParticipant:
		if info := api.Unwrap[api.ParticipantInfo](in.Payload); info != nil {
			s.handleUpdate(*info)
		}
	case api.RemoveParticipant:
		// the removal payload is the bare id
		if id := api.Unwrap[string](in.Payload); id != nil {
			s.handleRemove(*id)
		}
	case api.Offer, api.Answer:
		if n := api.Unwrap[api.Negotiation](in.Payload); n != nil {
			s.handleNegotiation(in.T, *n)
		}
	case api.IceCandidate:
		if c := api.Unwrap[api.Candidate](in.Payload); c != nil {
			s.handleCandidate(*c)
		}
	default:
		s.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}

// handleInit adopts the authoritative roster. On a reconnect the old
// roster is reconciled away first, so the session object survives
// relay restarts.
func (s *Session) handleInit(r api.InitRoom) {
	s.id = r.Id
	s.roomId = r.RoomId
	s.width, s.height = r.Width, r.Height
	s.log.Info().Msgf("joined room '%v' as %v (%vx%v), %v present",
		r.RoomId, r.Id, r.Width, r.Height, len(r.Clients))

	present := make(map[string]struct{}, len(r.Clients))
	for _, info := range r.Clients {
		present[info.Id] = struct{}{}
	}
	for id := range s.peers {
		if _, ok := present[id]; !ok {
			s.handleRemove(id)
		}
	}

	// Self first: peer admissions computed against it must not see a
	// stale own location.
	for _, info := range r.Clients {
		if info.Id == s.id {
			s.handleUpdate(info)
		}
	}
	for _, info := range r.Clients {
		if info.Id != s.id {
			s.handleUpdate(info)
		}
	}
}

func (s *Session) handleUpdate(info api.ParticipantInfo) {
	s.sink.UpdateParticipant(info)
	if info.Id == s.id {
		s.selfSharing.Set(info.SharingScreen)
		s.selfLocation.Set(info.Location)
		return
	}
	if p, ok := s.peers[info.Id]; ok {
		p.update(info)
		return
	}
	s.peers[info.Id] = newPeer(s, info)
}

func (s *Session) handleRemove(id string) {
	s.sink.RemoveParticipant(id)
	p, ok := s.peers[id]
	if !ok {
		return
	}
	delete(s.peers, id)
	p.destroy()
	for key := range s.links {
		if key.References(id) {
			delete(s.links, key)
		}
	}
}

func (s *Session) handleNegotiation(t api.PT, n api.Negotiation) {
	l := s.link(n.From, n.ConnectionId)
	if l == nil {
		return
	}
	if t == api.Offer {
		l.handleOffer(n.Description)
	} else {
		l.handleAnswer(n.Description)
	}
}

func (s *Session) handleCandidate(c api.Candidate) {
	if l := s.link(c.From, c.ConnectionId); l != nil {
		l.handleCandidate(c.Candidate)
	}
}

func (s *Session) link(from, channel string) *Link {
	p, ok := s.peers[from]
	if !ok {
		s.log.Debug().Msgf("negotiation from unknown peer %v, dropped", from)
		return nil
	}
	l := p.linkFor(channel)
	if l == nil {
		s.log.Warn().Msgf("negotiation for unknown channel '%v', dropped", channel)
	}
	return l
}

// Move asks the relay to shift the own location. The echo of the
// resulting broadcast is what moves the local state.
func (s *Session) Move(dx, dy float64) {
	s.post(func() { s.send(api.Move, api.MoveRequest{OffsetX: dx, OffsetY: dy}) })
}

// Teleport asks the relay for an absolute placement.
func (s *Session) Teleport(x, y float64) {
	s.post(func() { s.send(api.Teleport, api.TeleportRequest{X: x, Y: y}) })
}

// SetVideoMedia swaps the outbound camera stream; nil detaches it.
// Live transports re-attach in place, no renegotiation.
func (s *Session) SetVideoMedia(m LocalMedia) {
	s.post(func() { s.videoMedia.Set(m) })
}

// SetScreenMedia swaps the outbound screen stream and reports the
// sharing flip to the relay, which gates screen links room-wide.
func (s *Session) SetScreenMedia(m LocalMedia) {
	s.post(func() {
		s.screenMedia.Set(m)
		s.send(api.Screenshare, api.ScreenshareRequest{SharingScreen: m != nil})
	})
}

// Id reports the relay-assigned participant id; empty before Init.
func (s *Session) Id() string { return s.id }

// Room reports the joined room id and its bounds.
func (s *Session) Room() (id string, width, height float64) {
	return s.roomId, s.width, s.height
}
