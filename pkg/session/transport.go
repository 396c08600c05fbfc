package session

import (
	"github.com/goccy/go-json"
	"github.com/korobochka/social/pkg/api"
)

// LocalMedia is an outbound media stream handle. The transport
// implementation decides what it can attach; the orchestrator only
// tracks presence and identity.
type LocalMedia interface {
	StreamID() string
}

// TransportEvents are the callbacks a transport fires from its own
// goroutines; the orchestrator re-enters them into the session loop.
type TransportEvents struct {
	// OnCandidate reports a locally gathered ICE candidate.
	OnCandidate func(candidate json.RawMessage)
	// OnOpen reports media flowing.
	OnOpen func()
	// OnTerminal reports any terminal connectivity or signaling state
	// (closed, failed, disconnected).
	OnTerminal func()
}

// Transport is one direct peer connection. Implementations wrap the
// actual media stack; tests substitute fakes.
type Transport interface {
	// CreateOffer produces the local description of the offering side.
	// With no outbound media attached it must still produce a usable
	// (receive-only) offer, so the pair establishes a channel capable
	// of carrying media once it appears.
	CreateOffer() (json.RawMessage, error)
	// HandleOffer applies a remote offer and produces the answer.
	HandleOffer(remote json.RawMessage) (json.RawMessage, error)
	// HandleAnswer applies a remote answer to the in-flight exchange.
	HandleAnswer(remote json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	// AttachMedia replaces all outbound senders with the tracks of m
	// without renegotiating from scratch; nil detaches everything.
	AttachMedia(m LocalMedia) error
	// Close releases the transport synchronously: senders removed,
	// inbound tracks stopped, output reported gone.
	Close()
}

// TransportFactory mints transports for (peer, channel) pairs.
type TransportFactory interface {
	NewTransport(peer string, channel string, ev TransportEvents) (Transport, error)
}

// RenderSink is the rendering collaborator: it consumes roster
// changes, proximity effects and media arrival/loss. Implementations
// must not call back into the session synchronously.
type RenderSink interface {
	UpdateParticipant(info api.ParticipantInfo)
	RemoveParticipant(id string)
	// ProximityChanged reports the [0,1] closeness used for
	// size/volume effects outside the core.
	ProximityChanged(id string, closeness float64)
	TrackReceived(peer, channel string, track any)
	TrackEnded(peer, channel string)
}

// LinkKey identifies one orchestrated connection: the unordered
// participant pair in canonical order plus the channel name, so both
// sides agree on one key.
type LinkKey struct {
	Low, High string
	Channel   string
}

func NewLinkKey(a, b, channel string) LinkKey {
	if b < a {
		a, b = b, a
	}
	return LinkKey{Low: a, High: b, Channel: channel}
}

func (k LinkKey) References(id string) bool { return k.Low == id || k.High == id }
