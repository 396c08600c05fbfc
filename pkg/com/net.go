package com

import (
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/korobochka/social/pkg/api"
	"github.com/korobochka/social/pkg/logger"
	"github.com/korobochka/social/pkg/network/websocket"
)

type (
	// Connector upgrades HTTP requests or dials remote servers,
	// wrapping raw sockets into packet clients.
	Connector struct {
		tag string
		wu  *websocket.Upgrader
	}
	// Client is a packet-oriented connection to the other side.
	// The relay protocol is fire-and-forget: no packet expects
	// an in-band response.
	Client struct {
		id       Uid
		conn     *websocket.WS
		onPacket func(packet api.In)
		log      *logger.Logger
	}
	Option = func(c *Connector)
)

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }
func WithTag(tag string) Option    { return func(c *Connector) { c.tag = tag } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

// NewServer upgrades an incoming request into a server-side packet client.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newClient(websocket.NewServerWithConn(ws, log), NewUid(), "←", log), nil
}

// NewClient dials a remote server.
func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*Client, error) {
	conn, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	return newClient(conn, NewUid(), "→", log), nil
}

func newClient(conn *websocket.WS, id Uid, dir string, log *logger.Logger) *Client {
	c := &Client{
		id:   id,
		conn: conn,
		log: log.Extend(log.With().
			Str("cid", id.Short()).
			Str(logger.DirectionField, dir),
		),
	}
	c.conn.OnMessage = c.handleMessage
	c.log.Debug().Msg("Connect")
	return c
}

func (c *Client) Id() Uid { return c.id }

func (c *Client) OnPacket(fn func(packet api.In)) { c.onPacket = fn }

// Listen starts the socket pumps. Packets arrive on the OnPacket
// callback strictly in receipt order, one at a time.
func (c *Client) Listen() { c.conn.Listen() }

// Wait returns the channel signalling the connection death.
func (c *Client) Wait() chan struct{} { return c.conn.Done }

func (c *Client) Close() {
	c.conn.Close()
	c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

// Send marshals and queues one packet. The order of Send calls
// is the order of delivery.
func (c *Client) Send(t api.PT, payload any) error {
	r, err := json.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		return err
	}
	c.conn.Write(r)
	return nil
}

// Route forwards an incoming packet verbatim under the same type.
func (c *Client) Route(p api.In) error {
	r, err := json.Marshal(api.Out{T: p.T, Payload: p.Payload})
	if err != nil {
		return err
	}
	c.conn.Write(r)
	return nil
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		c.log.Error().Err(err).Send()
		return
	}
	var packet api.In
	if err = json.Unmarshal(message, &packet); err != nil {
		c.log.Error().Err(err).Msg("malformed packet")
		return
	}
	c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", packet.T)
	if c.onPacket != nil {
		c.onPacket(packet)
	}
}
