// Package relay forwards chat messages between mutual contacts.
// Messages are delivered live over the notification transport and never
// persisted.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/contacthub/contacthub/internal/graph"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
)

// ErrNotConnected is returned when the sender and receiver are not mutual
// contacts.
var ErrNotConnected = errors.New("not connected")

// Event is the payload delivered to the receiver's private channel and
// returned to the sender as its delivery confirmation.
type Event struct {
	Message           string    `json:"message"`
	ReceiverID        string    `json:"receiverId"`
	ReceiverEmail     string    `json:"receiverEmail"`
	SenderID          string    `json:"senderId"`
	SenderEmail       string    `json:"senderEmail"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Timestamp         time.Time `json:"timestamp"`
}

// MessageRelay is a stateless pass-through: it checks mutual-contact status
// and forwards the message through the dispatcher.
type MessageRelay struct {
	graph      *graph.ConnectionGraph
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

// New creates a message relay.
func New(g *graph.ConnectionGraph, dispatcher *notify.Dispatcher, log *slog.Logger) *MessageRelay {
	return &MessageRelay{
		graph:      g,
		dispatcher: dispatcher,
		log:        log,
	}
}

// SendMessage delivers body to the receiver's private channel. Both
// directions of the contact relation must hold: the sender lists the
// receiver and the receiver lists the sender. Either direction missing
// fails ErrNotConnected.
func (r *MessageRelay) SendMessage(ctx context.Context, sender identity.Identity, receiverUID, receiverEmail, body string) (*Event, error) {
	receiverEmail = identity.NormalizeEmail(receiverEmail)

	connected, err := r.graph.IsConnected(ctx, sender.Email, receiverEmail)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrNotConnected
	}

	event := &Event{
		Message:           body,
		ReceiverID:        receiverUID,
		ReceiverEmail:     receiverEmail,
		SenderID:          sender.UID,
		SenderEmail:       sender.Email,
		SenderDisplayName: sender.DisplayName,
		Timestamp:         time.Now().UTC(),
	}

	r.dispatcher.Publish(receiverUID, notify.EventMessageReceived, event)
	r.log.Debug("message relayed", "from", sender.Email, "to", receiverEmail)
	return event, nil
}
