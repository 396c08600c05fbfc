package relay

import (
	"net/http"
	"sync"

	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/com"
	"github.com/korobochka/social/pkg/config"
	"github.com/korobochka/social/pkg/logger"
)

// Hub is the process-wide room registry: rooms appear on the first
// join to a key and disappear with their last participant. The hub
// mutex is the single serialization point for membership changes,
// which keeps the one-room-per-live-key invariant.
type Hub struct {
	conf      config.RelayConfig
	connector *com.Connector

	mu    sync.Mutex
	rooms com.Map[string, *Room]

	log *logger.Logger
}

func NewHub(conf config.RelayConfig, log *logger.Logger) *Hub {
	return &Hub{
		conf:      conf,
		connector: com.NewConnector(com.WithOrigin(conf.Relay.Origin), com.WithTag("relay")),
		rooms:     com.NewMap[string, *Room](),
		log:       log,
	}
}

// handleParticipantConnection owns one participant from upgrade to
// disconnect. Blocks until the connection dies.
func (h *Hub) handleParticipantConnection(w http.ResponseWriter, r *http.Request) {
	key := RoomKey(r, h.conf.Relay.DefaultRoom)
	client, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("connection upgrade failed")
		return
	}

	room, p := h.join(key, client.Id().String(), client)
	h.log.Info().Msgf("connect %v to room '%v', total in room: %v", p.Id(), key, room.Size())

	client.OnPacket(func(in api.In) { room.HandlePacket(p, in) })
	client.Listen()
	<-client.Wait()

	h.leave(room, p)
	h.log.Info().Msgf("disconnect %v from room '%v', total in room: %v", p.Id(), key, room.Size())
}

func (h *Hub) join(key string, id string, conn Messenger) (*Room, *Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, err := h.rooms.Find(key)
	if err != nil {
		room = NewRoom(key, h.conf.Relay.Room, h.log)
		h.rooms.Put(key, room)
		roomCount.Inc()
	}
	p := room.Join(id, conn)
	participantCount.Inc()
	return room, p
}

func (h *Hub) leave(room *Room, p *Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room.Leave(p) {
		h.rooms.RemoveByKey(room.Id())
		roomCount.Dec()
	}
	participantCount.Dec()
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int { return h.rooms.Len() }
