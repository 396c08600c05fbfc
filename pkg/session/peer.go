package session

import (
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/proximity"
	"github.com/korobochka/social/pkg/reactive"
)

// Peer is one remote participant as seen locally: its observable state
// plus the two links (camera and screen) the session keeps towards it.
// Reactions fire synchronously on the session loop, because every Set
// originates there.
type Peer struct {
	id       string
	location *reactive.Observable[api.Vector]
	sharing  *reactive.Observable[bool]

	video  *Link
	screen *Link

	subs reactive.Subscriber
}

func newPeer(sess *Session, info api.ParticipantInfo) *Peer {
	p := &Peer{
		id:       info.Id,
		location: reactive.NewObservable(info.Location),
		sharing:  reactive.NewObservable(info.SharingScreen),
		video:    newLink(sess, info.Id, api.ChannelVideo),
		screen:   newLink(sess, info.Id, api.ChannelScreen),
	}
	sess.links[p.video.key()] = p.video
	sess.links[p.screen.key()] = p.screen

	prox := sess.prox
	// Camera admission and the closeness effect both derive from the
	// same pair of locations, so one reaction drives both.
	reactive.Autorun2(&p.subs,
		reactive.Obs(sess.selfLocation), reactive.Obs(p.location),
		func(self, other api.Vector) {
			d := proximity.Distance(self, other)
			p.video.setAdmitted(proximity.ShouldConnect(d, prox.ConnectionDistance))
			sess.sink.ProximityChanged(p.id, proximity.Closeness(d, prox.MinDistance, prox.MaxDistance))
		})
	// Screen admission additionally requires that at least one side
	// is actually sharing; idle screen links carry nothing.
	reactive.Autorun4(&p.subs,
		reactive.Obs(sess.selfLocation), reactive.Obs(p.location),
		reactive.Obs(sess.selfSharing), reactive.Obs(p.sharing),
		func(self, other api.Vector, meSharing, peerSharing bool) {
			d := proximity.Distance(self, other)
			p.screen.setAdmitted(proximity.ShouldConnect(d, prox.ConnectionDistance) && (meSharing || peerSharing))
		})

	reactive.Watch(&p.subs, sess.videoMedia, p.video.setMedia, false)
	reactive.Watch(&p.subs, sess.screenMedia, p.screen.setMedia, false)
	return p
}

func (p *Peer) linkFor(channel string) *Link {
	switch channel {
	case api.ChannelVideo:
		return p.video
	case api.ChannelScreen:
		return p.screen
	}
	return nil
}

// update applies a roster broadcast. Sharing lands before location so
// a single packet flipping both cannot admit a screen link from a
// stale position.
func (p *Peer) update(info api.ParticipantInfo) {
	p.sharing.Set(info.SharingScreen)
	p.location.Set(info.Location)
}

// destroy stops the reactions and closes both links.
func (p *Peer) destroy() {
	p.subs.Destroy()
	p.video.teardown()
	p.screen.teardown()
}
