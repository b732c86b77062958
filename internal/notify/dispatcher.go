package notify

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrChannelMismatch is returned when a client asks for authorization on a
// channel that is not their own private channel.
var ErrChannelMismatch = errors.New("channel does not belong to caller")

// DefaultQueueSize is the delivery queue capacity used when none is
// configured.
const DefaultQueueSize = 256

type task struct {
	channel string
	event   string
	payload any
}

// Dispatcher publishes events to per-user private channels.
//
// Publish is two-phase: callers commit their state change first, then hand
// the event to the dispatcher, which queues it and delivers from a background
// worker. Delivery is best-effort; a transport failure is logged and never
// propagated back to the state change that produced the event.
type Dispatcher struct {
	transport Transport
	log       *slog.Logger

	tasks     chan task
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher over the given transport and starts its
// delivery worker. queueSize <= 0 selects DefaultQueueSize.
func NewDispatcher(transport Transport, log *slog.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		transport: transport,
		log:       log,
		tasks:     make(chan task, queueSize),
	}
	d.wg.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.wg.Done()
	for t := range d.tasks {
		if err := d.transport.Trigger(t.channel, t.event, t.payload); err != nil {
			d.log.Warn("notification delivery failed",
				"channel", t.channel,
				"event", t.event,
				"error", err,
			)
		}
	}
}

// Publish enqueues an event for the user's private channel. If the queue is
// full the event is dropped with a warning: notifications are best-effort
// and must never block or fail the state transition that produced them.
func (d *Dispatcher) Publish(targetUID, event string, payload any) {
	t := task{channel: ChannelForUID(targetUID), event: event, payload: payload}
	select {
	case d.tasks <- t:
	default:
		d.log.Warn("notification queue full, dropping event",
			"channel", t.channel,
			"event", t.event,
		)
	}
}

// AuthenticateChannel authorizes a client's subscription to their own private
// channel. The channel name must exactly match the one derived from the
// claimed uid; anything else fails ErrChannelMismatch before the transport
// is consulted.
func (d *Dispatcher) AuthenticateChannel(socketID, channelName, claimedUID string) ([]byte, error) {
	if channelName != ChannelForUID(claimedUID) {
		return nil, ErrChannelMismatch
	}
	return d.transport.Authenticate(socketID, channelName)
}

// Close drains the delivery queue and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.tasks)
	})
	d.wg.Wait()
}
