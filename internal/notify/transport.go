// Package notify publishes events to per-user private channels.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event names published by the connection graph and the message relay.
const (
	EventFriendRequestReceived = "friend-request-received"
	EventFriendRequestAccepted = "friend-request-accepted"
	EventMessageReceived       = "message-received"
)

// ChannelForUID derives a user's private channel name from their uid.
func ChannelForUID(uid string) string {
	return "private-" + uid
}

// Transport delivers events to channels. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Trigger publishes payload to the named channel. Delivery is
	// at-most-once; the transport does not retry.
	Trigger(channel, event string, payload any) error

	// Authenticate produces a signed authorization response for a
	// client's channel subscription. The dispatcher has already checked
	// that the channel belongs to the caller.
	Authenticate(socketID, channel string) ([]byte, error)
}

// TransportFactory creates a transport from its driver-specific settings.
type TransportFactory func(settings map[string]any, log *slog.Logger) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = make(map[string]TransportFactory)
)

// RegisterTransport registers a transport factory by name.
// This is typically called from init() in transport packages.
func RegisterTransport(name string, factory TransportFactory) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = factory
}

// NewTransport creates a transport by name. Settings come from the
// corresponding [notify.transports.<name>] config section.
func NewTransport(name string, settings map[string]any, log *slog.Logger) (Transport, error) {
	transportsMu.RLock()
	factory, ok := transports[name]
	transportsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", name)
	}

	return factory(settings, log)
}
