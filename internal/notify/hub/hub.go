// Package hub implements an in-process websocket notification transport.
//
// It stands in for a hosted channel service during development and in small
// single-instance deployments: clients open a websocket per channel and the
// hub fans triggered events out to every subscriber. The authorization
// handshake mirrors the Pusher private-channel format so the same client
// code works against either transport.
package hub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/websocket"

	"github.com/contacthub/contacthub/internal/notify"
)

func init() {
	notify.RegisterTransport("hub", New)
}

// Settings holds the hub signing credentials, decoded from the
// [notify.transports.hub] config section.
type Settings struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

// Frame is the wire format delivered to subscribers.
type Frame struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
}

// Hub is a websocket fan-out transport.
type Hub struct {
	key    string
	secret []byte
	log    *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}
}

// New creates a hub transport from driver settings.
func New(settings map[string]any, log *slog.Logger) (notify.Transport, error) {
	var cfg Settings
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, fmt.Errorf("decode hub settings: %w", err)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("hub transport requires a secret")
	}
	if cfg.Key == "" {
		cfg.Key = "local"
	}

	return &Hub{
		key:    cfg.Key,
		secret: []byte(cfg.Secret),
		log:    log,
		subs:   make(map[string]map[*websocket.Conn]struct{}),
	}, nil
}

// Trigger fans the event out to every open subscriber of the channel.
// Connections that fail to accept the frame are dropped.
func (h *Hub) Trigger(channel, event string, payload any) error {
	frame, err := json.Marshal(Frame{Channel: channel, Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[channel]))
	for conn := range h.subs[channel] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := websocket.Message.Send(conn, string(frame)); err != nil {
			h.log.Debug("dropping dead subscriber", "channel", channel, "error", err)
			h.unsubscribe(channel, conn)
			conn.Close()
		}
	}
	return nil
}

// Authenticate signs a subscription request in the Pusher private-channel
// response format: {"auth":"<key>:<hex hmac of socket_id:channel>"}.
func (h *Hub) Authenticate(socketID, channel string) ([]byte, error) {
	return json.Marshal(map[string]string{
		"auth": h.key + ":" + h.sign(socketID, channel),
	})
}

func (h *Hub) sign(socketID, channel string) string {
	mac := hmac.New(sha256.New, h.secret)
	io.WriteString(mac, socketID+":"+channel)
	return hex.EncodeToString(mac.Sum(nil))
}

// Handler returns the websocket endpoint. Clients connect with
// ?channel=<name>&socket_id=<id>&auth=<key>:<sig> where the auth value comes
// from a prior channel-authorization call.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		q := ws.Request().URL.Query()
		channel := q.Get("channel")
		socketID := q.Get("socket_id")
		auth := q.Get("auth")

		if channel == "" || socketID == "" {
			ws.Close()
			return
		}
		expected := h.key + ":" + h.sign(socketID, channel)
		if !hmac.Equal([]byte(auth), []byte(expected)) {
			h.log.Warn("websocket subscription rejected", "channel", channel)
			ws.Close()
			return
		}

		h.subscribe(channel, ws)
		defer h.unsubscribe(channel, ws)

		// Hold the connection open; inbound frames are ignored.
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	})
}

func (h *Hub) subscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*websocket.Conn]struct{})
	}
	h.subs[channel][conn] = struct{}{}
}

func (h *Hub) unsubscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[channel], conn)
	if len(h.subs[channel]) == 0 {
		delete(h.subs, channel)
	}
}
