package rtc

import (
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/session"
	"github.com/pion/webrtc/v4"
)

// Factory mints pion-backed transports for the orchestrator.
type Factory struct {
	api  *ApiFactory
	sink session.RenderSink
	log  *logger.Logger
}

func NewFactory(api *ApiFactory, sink session.RenderSink, log *logger.Logger) *Factory {
	return &Factory{api: api, sink: sink, log: log}
}

func (f *Factory) NewTransport(peer string, channel string, ev session.TransportEvents) (session.Transport, error) {
	conn, err := f.api.NewPeer()
	if err != nil {
		return nil, err
	}
	p := &Peer{
		conn:    conn,
		peer:    peer,
		channel: channel,
		sink:    f.sink,
		log: f.log.Extend(f.log.With().
			Str("peer", peer).
			Str("ch", channel),
		),
	}
	conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		// nil marks the end of gathering; with trickle ICE there is
		// nothing to signal for it.
		if ice == nil {
			p.log.Debug().Msg("ICE gathering complete")
			return
		}
		candidate, err := json.Marshal(ice.ToJSON())
		if err != nil {
			p.log.Error().Err(err).Msg("candidate marshal failed")
			return
		}
		if ev.OnCandidate != nil {
			ev.OnCandidate(candidate)
		}
	})
	conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Debug().Str(".state", state.String()).Msg("ICE")
		switch state {
		case webrtc.ICEConnectionStateConnected:
			if ev.OnOpen != nil {
				ev.OnOpen()
			}
		case webrtc.ICEConnectionStateFailed,
			webrtc.ICEConnectionStateClosed,
			webrtc.ICEConnectionStateDisconnected:
			if ev.OnTerminal != nil {
				ev.OnTerminal()
			}
		}
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info().Msgf("Track [%v]", track.Codec().MimeType)
		p.gotTrack.Store(true)
		p.sink.TrackReceived(p.peer, p.channel, track)
	})
	return p, nil
}

// Peer adapts one pion connection to the orchestrator's transport
// contract. Methods run on the session loop; pion fires its callbacks
// from its own goroutines, which the loop re-enters via the events.
type Peer struct {
	conn    *webrtc.PeerConnection
	peer    string
	channel string
	sink    session.RenderSink
	// set on the first inbound track; Close reports a loss only then
	gotTrack atomic.Bool
	log      *logger.Logger
}

// CreateOffer produces the initiating description. With nothing to
// send yet, a receive-only transceiver keeps a media section in the
// offer so the connection still forms and can carry the remote side's
// tracks.
func (p *Peer) CreateOffer() (json.RawMessage, error) {
	if len(p.conn.GetSenders()) == 0 {
		_, err := p.conn.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
		if err != nil {
			return nil, err
		}
	}
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (p *Peer) HandleOffer(remote json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(remote, &offer); err != nil {
		return nil, err
	}
	if err := p.conn.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (p *Peer) HandleAnswer(remote json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(remote, &answer); err != nil {
		return err
	}
	return p.conn.SetRemoteDescription(answer)
}

func (p *Peer) AddCandidate(candidate json.RawMessage) error {
	var ice webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &ice); err != nil {
		return err
	}
	if err := p.conn.AddICECandidate(ice); err != nil {
		return err
	}
	p.log.Debug().Str("candidate", ice.Candidate).Msg("Ice")
	return nil
}

// AttachMedia replaces every outbound sender with the tracks of m.
// Sender replacement renegotiates nothing; the remote side just sees
// the track go silent or start flowing.
func (p *Peer) AttachMedia(m session.LocalMedia) error {
	for _, sender := range p.conn.GetSenders() {
		if err := p.conn.RemoveTrack(sender); err != nil {
			p.log.Error().Err(err).Msg("sender removal failed")
		}
	}
	if m == nil {
		return nil
	}
	stream, ok := m.(*Stream)
	if !ok {
		return fmt.Errorf("unsupported media %T", m)
	}
	for _, track := range stream.Tracks() {
		sender, err := p.conn.AddTrack(track)
		if err != nil {
			return err
		}
		// Drain RTCP so interceptors keep working.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	p.log.Debug().Msgf("Attached stream '%v'", stream.StreamID())
	return nil
}

func (p *Peer) Close() {
	if p.gotTrack.Swap(false) {
		p.sink.TrackEnded(p.peer, p.channel)
	}
	if p.conn.ConnectionState() < webrtc.PeerConnectionStateDisconnected {
		// ignore this due to DTLS fatal: conn is closed
		_ = p.conn.Close()
	}
	p.log.Debug().Msg("WebRTC stop")
}
