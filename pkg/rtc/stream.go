package rtc

import (
	"github.com/pion/webrtc/v4"
)

// Stream is a bundle of outbound tracks published under one stream id,
// the unit the orchestrator attaches to transports. The same Stream
// may be attached to any number of peer connections at once.
type Stream struct {
	id     string
	tracks []webrtc.TrackLocal
}

func NewStream(id string, tracks ...webrtc.TrackLocal) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) StreamID() string { return s.id }

func (s *Stream) Tracks() []webrtc.TrackLocal { return s.tracks }

// NewVideoTrack makes a sample-fed local video track for the stream.
func NewVideoTrack(id, stream string, mime string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, stream)
}

// NewAudioTrack makes an opus local track for the stream.
func NewAudioTrack(id, stream string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, id, stream)
}
