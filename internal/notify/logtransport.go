package notify

import "log/slog"

func init() {
	RegisterTransport("log", func(settings map[string]any, log *slog.Logger) (Transport, error) {
		return &LogTransport{log: log}, nil
	})
}

// LogTransport writes deliveries to the log instead of a real-time service.
// It is the default transport when none is configured, useful for local
// development and as a sink in tests.
type LogTransport struct {
	log *slog.Logger
}

// Trigger logs the delivery and discards the payload.
func (t *LogTransport) Trigger(channel, event string, payload any) error {
	t.log.Info("event", "channel", channel, "event", event, "payload", payload)
	return nil
}

// Authenticate returns an empty authorization body; there is no transport to
// hand it to.
func (t *LogTransport) Authenticate(socketID, channel string) ([]byte, error) {
	return []byte(`{}`), nil
}
