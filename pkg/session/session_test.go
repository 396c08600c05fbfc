package session

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
)

type fakeRelay struct {
	sent []api.Out
}

func (f *fakeRelay) Send(t api.PT, payload any) error {
	f.sent = append(f.sent, api.Out{T: t, Payload: payload})
	return nil
}

func (f *fakeRelay) ofType(pt api.PT) (out []api.Out) {
	for _, o := range f.sent {
		if o.T == pt {
			out = append(out, o)
		}
	}
	return
}

type fakeTransport struct {
	peer, channel string
	ev            TransportEvents

	media      LocalMedia
	candidates []json.RawMessage
	offerErr   error
	offers     int
	answers    int
	closed     bool
}

func (t *fakeTransport) CreateOffer() (json.RawMessage, error) {
	t.offers++
	if t.offerErr != nil {
		return nil, t.offerErr
	}
	return json.RawMessage(`{"type":"offer"}`), nil
}

func (t *fakeTransport) HandleOffer(json.RawMessage) (json.RawMessage, error) {
	t.answers++
	return json.RawMessage(`{"type":"answer"}`), nil
}

func (t *fakeTransport) HandleAnswer(json.RawMessage) error { return nil }

func (t *fakeTransport) AddCandidate(c json.RawMessage) error {
	t.candidates = append(t.candidates, c)
	return nil
}

func (t *fakeTransport) AttachMedia(m LocalMedia) error { t.media = m; return nil }

func (t *fakeTransport) Close() { t.closed = true }

type fakeFactory struct {
	made []*fakeTransport
	// transports are born broken while the countdown lasts
	offerFailures int
}

func (f *fakeFactory) NewTransport(peer string, channel string, ev TransportEvents) (Transport, error) {
	t := &fakeTransport{peer: peer, channel: channel, ev: ev}
	if f.offerFailures > 0 {
		f.offerFailures--
		t.offerErr = errors.New("no usable codecs")
	}
	f.made = append(f.made, t)
	return t, nil
}

func (f *fakeFactory) live(channel string) (out []*fakeTransport) {
	for _, t := range f.made {
		if t.channel == channel && !t.closed {
			out = append(out, t)
		}
	}
	return
}

type fakeSink struct {
	updated   []api.ParticipantInfo
	removed   []string
	closeness map[string]float64
	tracks    map[string]int
}

func (f *fakeSink) UpdateParticipant(info api.ParticipantInfo) { f.updated = append(f.updated, info) }
func (f *fakeSink) RemoveParticipant(id string)                { f.removed = append(f.removed, id) }
func (f *fakeSink) ProximityChanged(id string, closeness float64) {
	if f.closeness == nil {
		f.closeness = map[string]float64{}
	}
	f.closeness[id] = closeness
}
func (f *fakeSink) TrackReceived(peer, channel string, _ any) {
	if f.tracks == nil {
		f.tracks = map[string]int{}
	}
	f.tracks[peer+"/"+channel]++
}
func (f *fakeSink) TrackEnded(peer, channel string) {
	if f.tracks != nil {
		f.tracks[peer+"/"+channel]--
	}
}

type fakeMedia struct{ id string }

func (f *fakeMedia) StreamID() string { return f.id }

func newTestSession() (*Session, *fakeRelay, *fakeFactory, *fakeSink) {
	conn := &fakeRelay{}
	factory := &fakeFactory{}
	sink := &fakeSink{}
	prox := config.Proximity{MinDistance: 100, MaxDistance: 600, ConnectionDistance: 2000}
	s := New(conn, factory, sink, prox, logger.Default())
	s.Start()
	return s, conn, factory, sink
}

// flush waits until every already queued loop closure has run.
func flush(s *Session) {
	done := make(chan struct{})
	s.post(func() { close(done) })
	<-done
}

func pkt(t *testing.T, pt api.PT, payload any) api.In {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return api.In{T: pt, Payload: raw}
}

func at(id string, x, y float64) api.ParticipantInfo {
	return api.ParticipantInfo{Id: id, Location: api.Vector{X: x, Y: y}}
}

func join(t *testing.T, s *Session, self string, roster ...api.ParticipantInfo) {
	t.Helper()
	s.HandlePacket(pkt(t, api.Init, api.InitRoom{
		RoomId: "test", Id: self, Width: 1500, Height: 5000, Clients: roster,
	}))
	flush(s)
}

func update(t *testing.T, s *Session, info api.ParticipantInfo) {
	t.Helper()
	s.HandlePacket(pkt(t, api.UpdateParticipant, info))
	flush(s)
}

func TestNoConnectionBeyondRadius(t *testing.T) {
	s, _, factory, sink := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 3000, 0))

	if len(factory.made) != 0 {
		t.Errorf("%v transports for a distant peer, but should be none", len(factory.made))
	}
	if c := sink.closeness["b"]; c != 0 {
		t.Errorf("closeness is %v, but should be 0", c)
	}
}

func TestLowerIdOffersOnApproach(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 3000, 0))
	update(t, s, at("b", 1900, 0))

	video := factory.live(api.ChannelVideo)
	if len(video) != 1 {
		t.Fatalf("%v video transports, but should be exactly 1", len(video))
	}
	if video[0].offers != 1 {
		t.Errorf("%v offers created, but should be 1", video[0].offers)
	}
	offers := conn.ofType(api.Offer)
	if len(offers) != 1 {
		t.Fatalf("%v offers sent, but should be 1", len(offers))
	}
	n := offers[0].Payload.(api.Negotiation)
	if n.From != "a" || n.To != "b" || n.ConnectionId != api.ChannelVideo {
		t.Errorf("offer was %+v, but should go from 'a' to 'b' on [video]", n)
	}
	if len(factory.live(api.ChannelScreen)) != 0 {
		t.Errorf("a screen transport without sharing, but should not be")
	}
}

func TestHigherIdWaitsForOffer(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "b", at("b", 0, 0), at("a", 100, 0))

	if len(factory.made) != 0 {
		t.Fatalf("the higher id made %v transports on its own, but should wait", len(factory.made))
	}

	s.HandlePacket(pkt(t, api.Offer, api.Negotiation{
		From: "a", To: "b", ConnectionId: api.ChannelVideo,
		Description: json.RawMessage(`{"type":"offer"}`),
	}))
	flush(s)

	video := factory.live(api.ChannelVideo)
	if len(video) != 1 || video[0].answers != 1 {
		t.Fatalf("no answering transport after the offer, but should be")
	}
	answers := conn.ofType(api.Answer)
	if len(answers) != 1 {
		t.Fatalf("%v answers sent, but should be 1", len(answers))
	}
	if n := answers[0].Payload.(api.Negotiation); n.From != "b" || n.To != "a" {
		t.Errorf("answer was %+v, but should go from 'b' to 'a'", n)
	}
}

func TestOfferSupersedesTransport(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "b", at("b", 0, 0), at("a", 100, 0))
	offer := pkt(t, api.Offer, api.Negotiation{
		From: "a", To: "b", ConnectionId: api.ChannelVideo,
		Description: json.RawMessage(`{"type":"offer"}`),
	})
	s.HandlePacket(offer)
	s.HandlePacket(offer)
	flush(s)

	if len(factory.made) != 2 {
		t.Fatalf("%v transports, but should be 2 after a re-offer", len(factory.made))
	}
	if !factory.made[0].closed {
		t.Errorf("the superseded transport is open, but should be closed")
	}
	if factory.made[1].closed {
		t.Errorf("the answering transport is closed, but should be open")
	}
}

func TestTerminalStateRestarts(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	first := factory.made[0]

	first.ev.OnTerminal()
	flush(s)

	if !first.closed {
		t.Errorf("failed transport is open, but should be closed")
	}
	video := factory.live(api.ChannelVideo)
	if len(video) != 1 || video[0] == first {
		t.Fatalf("no replacement transport after failure, but should be")
	}
	if len(conn.ofType(api.Offer)) != 2 {
		t.Errorf("%v offers sent, but should be 2 after a restart", len(conn.ofType(api.Offer)))
	}
}

func TestOfferFailureRetriesOffTheFailingPath(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	factory.offerFailures = 3
	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	// each retry is a separate loop event; drain one per flush
	flush(s)
	flush(s)
	flush(s)

	if len(factory.made) != 4 {
		t.Fatalf("%v transports made, but should be 4: three broken, one good", len(factory.made))
	}
	for _, broken := range factory.made[:3] {
		if !broken.closed {
			t.Errorf("a failed transport stayed open, but should be closed")
		}
	}
	if len(factory.live(api.ChannelVideo)) != 1 {
		t.Errorf("%v live transports, but should be exactly 1", len(factory.live(api.ChannelVideo)))
	}
	if len(conn.ofType(api.Offer)) != 1 {
		t.Errorf("%v offers sent, but should be 1 from the good transport", len(conn.ofType(api.Offer)))
	}
	// other events still get through between retries
	update(t, s, at("b", 350, 0))
	if loc := s.peers["b"].location.Get(); loc != (api.Vector{X: 350, Y: 0}) {
		t.Errorf("peer location is %v, but should follow updates during retries", loc)
	}
}

func TestOfferFailureRetryStopsOnTeardown(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	factory.offerFailures = 2
	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))

	// the retry of the first failure is still queued
	update(t, s, at("b", 2500, 0))
	flush(s)
	made := len(factory.made)
	flush(s)

	if len(factory.made) != made {
		t.Errorf("retries continued past teardown, but should stop")
	}
	if len(factory.live(api.ChannelVideo)) != 0 {
		t.Errorf("a live transport after moving apart, but should be none")
	}
}

func TestStaleCallbacksIgnored(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	first := factory.made[0]
	first.ev.OnTerminal()
	flush(s)

	made := len(factory.made)
	first.ev.OnTerminal() // from the discarded transport
	first.ev.OnOpen()
	flush(s)

	if len(factory.made) != made {
		t.Errorf("a stale terminal produced a new transport, but should be ignored")
	}
}

func TestMovingApartTearsDown(t *testing.T) {
	s, _, factory, sink := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	update(t, s, at("b", 2500, 0))

	if len(factory.live(api.ChannelVideo)) != 0 {
		t.Errorf("a live transport beyond the radius, but should be torn down")
	}
	if len(factory.made) != 1 {
		t.Errorf("teardown spawned a replacement, but should not")
	}
	if c := sink.closeness["b"]; c != 0 {
		t.Errorf("closeness is %v after moving apart, but should be 0", c)
	}
}

func TestOwnMovementAdmits(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 2500, 0))
	if len(factory.made) != 0 {
		t.Fatalf("a transport beyond the radius, but should be none")
	}
	// the relay echo of an own teleport
	update(t, s, at("a", 1000, 0))

	if len(factory.live(api.ChannelVideo)) != 1 {
		t.Errorf("no transport after the own location echo, but should be")
	}
}

func TestClosenessReported(t *testing.T) {
	s, _, _, sink := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 350, 0))
	if c := sink.closeness["b"]; c != 0.5 {
		t.Errorf("closeness at 350 is %v, but should be 0.5", c)
	}
	update(t, s, at("b", 50, 0))
	if c := sink.closeness["b"]; c != 1 {
		t.Errorf("closeness at 50 is %v, but should be 1", c)
	}
}

func TestCandidateRouting(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	video := factory.made[0]

	s.HandlePacket(pkt(t, api.IceCandidate, api.Candidate{
		From: "b", ConnectionId: api.ChannelVideo,
		Candidate: json.RawMessage(`{"candidate":"candidate:1"}`),
	}))
	// no screen transport exists: dropped without effect
	s.HandlePacket(pkt(t, api.IceCandidate, api.Candidate{
		From: "b", ConnectionId: api.ChannelScreen,
		Candidate: json.RawMessage(`{"candidate":"candidate:2"}`),
	}))
	// unknown peer: dropped
	s.HandlePacket(pkt(t, api.IceCandidate, api.Candidate{
		From: "ghost", ConnectionId: api.ChannelVideo,
		Candidate: json.RawMessage(`{"candidate":"candidate:3"}`),
	}))
	// unknown channel: dropped
	s.HandlePacket(pkt(t, api.IceCandidate, api.Candidate{
		From: "b", ConnectionId: "junk",
		Candidate: json.RawMessage(`{"candidate":"candidate:4"}`),
	}))
	flush(s)

	if len(video.candidates) != 1 {
		t.Fatalf("%v candidates applied, but should be 1", len(video.candidates))
	}
	if string(video.candidates[0]) != `{"candidate":"candidate:1"}` {
		t.Errorf("candidate was %s, but should pass through untouched", video.candidates[0])
	}
}

func TestScreenShareGating(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	if len(factory.live(api.ChannelScreen)) != 0 {
		t.Fatalf("a screen transport with nobody sharing, but should be none")
	}

	sharing := at("b", 100, 0)
	sharing.SharingScreen = true
	update(t, s, sharing)

	screen := factory.live(api.ChannelScreen)
	if len(screen) != 1 {
		t.Fatalf("%v screen transports after the peer shares, but should be 1", len(screen))
	}
	offers := conn.ofType(api.Offer)
	if n := offers[len(offers)-1].Payload.(api.Negotiation); n.ConnectionId != api.ChannelScreen {
		t.Errorf("last offer is for [%v], but should be for the screen", n.ConnectionId)
	}

	update(t, s, at("b", 100, 0)) // stops sharing
	if len(factory.live(api.ChannelScreen)) != 0 {
		t.Errorf("screen transport survives the sharing stop, but should be closed")
	}
	if len(factory.live(api.ChannelVideo)) != 1 {
		t.Errorf("camera transport died with the screen one, but should survive")
	}
}

func TestOwnSharingAdmitsScreen(t *testing.T) {
	s, conn, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))

	s.SetScreenMedia(&fakeMedia{id: "screen"})
	flush(s)
	if len(conn.ofType(api.Screenshare)) != 1 {
		t.Fatalf("no screenshare report after publishing, but should be")
	}
	// screen links react to the relay echo, not to the local publish
	if len(factory.live(api.ChannelScreen)) != 0 {
		t.Fatalf("a screen transport before the relay echo, but should be none")
	}

	echo := at("a", 0, 0)
	echo.SharingScreen = true
	update(t, s, echo)

	screen := factory.live(api.ChannelScreen)
	if len(screen) != 1 {
		t.Fatalf("%v screen transports after the echo, but should be 1", len(screen))
	}
	if screen[0].media == nil || screen[0].media.StreamID() != "screen" {
		t.Errorf("screen transport carries %v, but should carry the published stream", screen[0].media)
	}
}

func TestMediaReattachedInPlace(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))
	video := factory.made[0]

	cam := &fakeMedia{id: "cam"}
	s.SetVideoMedia(cam)
	flush(s)
	if video.media != cam {
		t.Fatalf("transport carries %v, but should carry the camera", video.media)
	}

	cam2 := &fakeMedia{id: "cam"}
	s.SetVideoMedia(cam2)
	flush(s)
	if video.media != cam2 {
		t.Errorf("a replacement handle with the same id was not attached, but should be")
	}

	s.SetVideoMedia(nil)
	flush(s)
	if video.media != nil {
		t.Errorf("transport still carries media after detach, but should not")
	}
	if video.closed {
		t.Errorf("detaching media closed the transport, but should not")
	}
}

func TestMediaAttachedToNewTransports(t *testing.T) {
	s, _, factory, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0))
	cam := &fakeMedia{id: "cam"}
	s.SetVideoMedia(cam)
	flush(s)

	update(t, s, at("b", 100, 0))
	video := factory.live(api.ChannelVideo)
	if len(video) != 1 || video[0].media != cam {
		t.Errorf("a transport made after publishing lacks the camera, but should carry it")
	}
}

func TestPeerRemovalCleansUp(t *testing.T) {
	s, _, factory, sink := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))

	s.HandlePacket(pkt(t, api.RemoveParticipant, "b"))
	flush(s)

	if !factory.made[0].closed {
		t.Errorf("departed peer's transport is open, but should be closed")
	}
	if len(sink.removed) != 1 || sink.removed[0] != "b" {
		t.Errorf("removals were %v, but should be [b]", sink.removed)
	}
	if len(s.links) != 0 || len(s.peers) != 0 {
		t.Errorf("%v links and %v peers linger, but should be none", len(s.links), len(s.peers))
	}

	// the same id may come back and negotiate from scratch
	update(t, s, at("b", 100, 0))
	if len(factory.live(api.ChannelVideo)) != 1 {
		t.Errorf("no transport for the returned peer, but should be")
	}
}

func TestInitReconcilesRoster(t *testing.T) {
	s, _, factory, sink := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0), at("b", 100, 0))

	// relay reconnect: the new room no longer has b
	join(t, s, "a", at("a", 0, 0), at("c", 100, 0))

	if !factory.made[0].closed {
		t.Errorf("transport of a vanished peer is open, but should be closed")
	}
	if len(sink.removed) != 1 || sink.removed[0] != "b" {
		t.Errorf("removals were %v, but should be [b]", sink.removed)
	}
	if len(factory.live(api.ChannelVideo)) != 1 {
		t.Errorf("no transport towards the new roster, but should be")
	}
}

func TestMoveRequestsGoToRelay(t *testing.T) {
	s, conn, _, _ := newTestSession()
	defer s.Stop()

	join(t, s, "a", at("a", 0, 0))
	s.Move(10, -5)
	s.Teleport(700, 700)
	flush(s)

	moves := conn.ofType(api.Move)
	if len(moves) != 1 {
		t.Fatalf("%v move packets, but should be 1", len(moves))
	}
	if rq := moves[0].Payload.(api.MoveRequest); rq.OffsetX != 10 || rq.OffsetY != -5 {
		t.Errorf("move was %+v, but should carry the offsets", rq)
	}
	tp := conn.ofType(api.Teleport)
	if len(tp) != 1 {
		t.Fatalf("%v teleport packets, but should be 1", len(tp))
	}
	// local state is driven by the echo only
	if loc := s.selfLocation.Get(); loc != (api.Vector{}) {
		t.Errorf("own location is %v before the echo, but should be untouched", loc)
	}
}
