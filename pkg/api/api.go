// Package api defines the wire protocol between participants and the relay.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	t - (required) one of the predefined unique packet types;
//	p - (optional) packet payload with arbitrary data.
//
// The packets differentiate by their predefined types with which it is
// possible to unwrap the payload into distinct request/response data
// structures. Negotiation payloads (offers, answers, candidates) are
// routed by the relay without decoding their contents.
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type PT uint8

// In is an incoming packet with a still-packed payload.
type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

// Out is an outgoing packet.
type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Packet codes:
//
//	1xx - room state
//	2xx - negotiation
const (
	Init              PT = 100
	Move              PT = 101
	Teleport          PT = 102
	Screenshare       PT = 103
	UpdateParticipant PT = 104
	RemoveParticipant PT = 105
	Offer             PT = 201
	Answer            PT = 202
	IceCandidate      PT = 203
)

func (p PT) String() string {
	switch p {
	case Init:
		return "Init"
	case Move:
		return "Move"
	case Teleport:
		return "Teleport"
	case Screenshare:
		return "Screenshare"
	case UpdateParticipant:
		return "UpdateParticipant"
	case RemoveParticipant:
		return "RemoveParticipant"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case IceCandidate:
		return "IceCandidate"
	default:
		return fmt.Sprintf("Unknown (%v)", uint8(p))
	}
}

// Media channel names, used as connection ids in negotiation packets.
const (
	ChannelVideo  = "video"
	ChannelScreen = "screen"
)

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
