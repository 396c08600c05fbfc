package session

import (
	"github.com/goccy/go-json"
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/logger"
)

type linkState uint8

const (
	linkIdle linkState = iota
	linkNegotiating
	linkOpen
)

func (s linkState) String() string {
	switch s {
	case linkIdle:
		return "idle"
	case linkNegotiating:
		return "negotiating"
	case linkOpen:
		return "open"
	}
	return "?"
}

// Link tracks one (pair, channel) connection through its whole life:
// admission flips, negotiation, transport failures and restarts.
// Every method runs on the session loop.
type Link struct {
	sess    *Session
	peer    string
	channel string

	state     linkState
	admitted  bool
	transport Transport
	media     LocalMedia
	// epoch guards against callbacks of transports this link has
	// already discarded; each created transport captures its value.
	epoch uint64

	log *logger.Logger
}

func newLink(sess *Session, peer, channel string) *Link {
	return &Link{
		sess:    sess,
		peer:    peer,
		channel: channel,
		log: sess.log.Extend(sess.log.With().
			Str("peer", peer).
			Str("ch", channel),
		),
	}
}

func (l *Link) key() LinkKey { return NewLinkKey(l.sess.id, l.peer, l.channel) }

// setAdmitted applies an admission decision. A rising edge starts
// negotiation on the initiating side; a falling edge tears the
// transport down on both sides.
func (l *Link) setAdmitted(admitted bool) {
	if l.admitted == admitted {
		return
	}
	l.admitted = admitted
	if admitted {
		l.start()
	} else {
		l.teardown()
	}
}

// initiator reports whether the local side originates offers for this
// pair: always the lexicographically lower id, so exactly one side
// offers and glare is impossible.
func (l *Link) initiator() bool { return l.sess.id < l.peer }

// start begins negotiation from scratch on the initiating side. The
// answering side does nothing here; its transport appears when the
// remote offer arrives.
func (l *Link) start() {
	if !l.initiator() || l.transport != nil {
		return
	}
	t, err := l.create()
	if err != nil {
		l.log.Error().Err(err).Msg("transport create failed")
		return
	}
	l.transport = t
	l.state = linkNegotiating
	if l.media != nil {
		if err := t.AttachMedia(l.media); err != nil {
			l.log.Error().Err(err).Msg("media attach failed")
		}
	}
	offer, err := t.CreateOffer()
	if err != nil {
		l.log.Error().Err(err).Msg("offer failed")
		l.fail()
		return
	}
	l.sess.send(api.Offer, api.Negotiation{
		From:         l.sess.id,
		To:           l.peer,
		ConnectionId: l.channel,
		Description:  offer,
	})
	l.log.Debug().Msg("offer sent")
}

// handleOffer answers a remote offer. An offer always supersedes
// whatever transport exists for the pair: the remote side restarts by
// re-offering, so the stale local transport is force-closed first.
func (l *Link) handleOffer(description json.RawMessage) {
	l.closeTransport()
	t, err := l.create()
	if err != nil {
		l.log.Error().Err(err).Msg("transport create failed")
		return
	}
	l.transport = t
	l.state = linkNegotiating
	if l.media != nil {
		if err := t.AttachMedia(l.media); err != nil {
			l.log.Error().Err(err).Msg("media attach failed")
		}
	}
	answer, err := t.HandleOffer(description)
	if err != nil {
		l.log.Error().Err(err).Msg("offer handling failed")
		l.fail()
		return
	}
	l.sess.send(api.Answer, api.Negotiation{
		From:         l.sess.id,
		To:           l.peer,
		ConnectionId: l.channel,
		Description:  answer,
	})
	l.log.Debug().Msg("answer sent")
}

func (l *Link) handleAnswer(description json.RawMessage) {
	if l.transport == nil {
		l.log.Debug().Msg("answer for a dead transport, dropped")
		return
	}
	if err := l.transport.HandleAnswer(description); err != nil {
		l.log.Error().Err(err).Msg("answer handling failed")
		l.fail()
	}
}

// handleCandidate applies a trickled remote candidate. Candidates that
// raced ahead of their transport are dropped; trickle ICE retransmits
// nothing, and the eventual restart re-gathers from scratch.
func (l *Link) handleCandidate(candidate json.RawMessage) {
	if l.transport == nil {
		l.log.Debug().Msg("candidate without a transport, dropped")
		return
	}
	if err := l.transport.AddCandidate(candidate); err != nil {
		l.log.Error().Err(err).Msg("candidate rejected")
	}
}

// setMedia swaps the outbound stream. A live transport re-attaches in
// place; renegotiation is not required for sender replacement.
func (l *Link) setMedia(m LocalMedia) {
	l.media = m
	if l.transport == nil {
		return
	}
	if err := l.transport.AttachMedia(m); err != nil {
		l.log.Error().Err(err).Msg("media attach failed")
	}
}

// fail discards the transport and, while still admitted, restarts
// negotiation. The restart runs as its own loop event, never on the
// failing call stack; the epoch check skips it when anything else
// (teardown, a remote offer) touched the link first. Restarts are not
// rate-limited; the admission signal is the only brake.
func (l *Link) fail() {
	l.log.Info().Msgf("link failed in state %v", l.state)
	l.closeTransport()
	if !l.admitted {
		return
	}
	e := l.epoch
	l.sess.post(func() {
		if l.epoch == e && l.admitted && l.transport == nil {
			l.start()
		}
	})
}

func (l *Link) teardown() {
	if l.transport == nil {
		return
	}
	l.log.Debug().Msg("link teardown")
	l.closeTransport()
}

func (l *Link) closeTransport() {
	l.epoch++
	if t := l.transport; t != nil {
		l.transport = nil
		t.Close()
	}
	l.state = linkIdle
}

// create mints a transport whose callbacks re-enter the session loop
// and are ignored once the link has moved past this transport.
func (l *Link) create() (Transport, error) {
	e := l.epoch
	return l.sess.factory.NewTransport(l.peer, l.channel, TransportEvents{
		OnCandidate: func(candidate json.RawMessage) {
			l.sess.post(func() {
				if l.epoch != e {
					return
				}
				l.sess.send(api.IceCandidate, api.Candidate{
					To:           l.peer,
					ConnectionId: l.channel,
					Candidate:    candidate,
				})
			})
		},
		OnOpen: func() {
			l.sess.post(func() {
				if l.epoch != e {
					return
				}
				l.state = linkOpen
				l.log.Info().Msg("link open")
			})
		},
		OnTerminal: func() {
			l.sess.post(func() {
				if l.epoch != e {
					return
				}
				l.fail()
			})
		},
	})
}
