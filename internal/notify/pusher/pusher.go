// Package pusher implements the notification transport over Pusher Channels.
package pusher

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mitchellh/mapstructure"
	pusherhttp "github.com/pusher/pusher-http-go/v5"

	"github.com/contacthub/contacthub/internal/notify"
)

func init() {
	notify.RegisterTransport("pusher", New)
}

// Settings holds the Pusher app credentials, decoded from the
// [notify.transports.pusher] config section.
type Settings struct {
	AppID   string `mapstructure:"app_id"`
	Key     string `mapstructure:"key"`
	Secret  string `mapstructure:"secret"`
	Cluster string `mapstructure:"cluster"`
}

// Transport delivers events through the Pusher Channels HTTP API.
type Transport struct {
	client *pusherhttp.Client
}

// New creates a Pusher transport from driver settings.
func New(settings map[string]any, log *slog.Logger) (notify.Transport, error) {
	var cfg Settings
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, fmt.Errorf("decode pusher settings: %w", err)
	}
	if cfg.AppID == "" || cfg.Key == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("pusher transport requires app_id, key, and secret")
	}

	return &Transport{
		client: &pusherhttp.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
			Secure:  true,
		},
	}, nil
}

// Trigger publishes the payload on the named channel.
func (t *Transport) Trigger(channel, event string, payload any) error {
	return t.client.Trigger(channel, event, payload)
}

// Authenticate signs a private-channel subscription request.
func (t *Transport) Authenticate(socketID, channel string) ([]byte, error) {
	params := url.Values{
		"socket_id":    {socketID},
		"channel_name": {channel},
	}
	return t.client.AuthorizePrivateChannel([]byte(params.Encode()))
}
