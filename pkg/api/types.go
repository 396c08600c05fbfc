package api

import "github.com/goccy/go-json"

// Vector is a location inside a room.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector) Add(x, y float64) Vector { return Vector{X: v.X + x, Y: v.Y + y} }

// ParticipantInfo is the public state of one participant,
// as broadcast to the whole room.
type ParticipantInfo struct {
	Id            string `json:"id"`
	Location      Vector `json:"location"`
	SharingScreen bool   `json:"sharingScreen"`
}

// InitRoom is the first packet a participant receives after joining.
type InitRoom struct {
	RoomId  string            `json:"roomId"`
	Id      string            `json:"id"`
	Width   float64           `json:"width"`
	Height  float64           `json:"height"`
	Clients []ParticipantInfo `json:"clients"`
}

// MoveRequest shifts the sender by an offset.
type MoveRequest struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// TeleportRequest places the sender at an absolute location.
type TeleportRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenshareRequest flips the sender's sharing state.
type ScreenshareRequest struct {
	SharingScreen bool `json:"sharingScreen"`
}

// Candidate carries one trickled ICE candidate between two participants.
// The relay fills From on delivery; the candidate itself stays opaque.
type Candidate struct {
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	ConnectionId string          `json:"connectionId"`
	Candidate    json.RawMessage `json:"candidate"`
}

// Negotiation is an offer or an answer, forwarded by the relay verbatim.
type Negotiation struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	ConnectionId string          `json:"connectionId"`
	Description  json.RawMessage `json:"description"`
}
