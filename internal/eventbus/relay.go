package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used by Relay.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay mirrors every bus event onto NATS as JSON under
// <prefix>.<event type>, so other processes can follow store changes.
type Relay struct {
	bus    *Bus
	pub    Publisher
	prefix string
}

func NewRelay(bus *Bus, pub Publisher, prefix string) *Relay {
	return &Relay{bus: bus, pub: pub, prefix: prefix}
}

// ConnectNATS dials url with reconnects enabled for the lifetime of the server.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("timeguild-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func (r *Relay) Subject(t EventType) string {
	return r.prefix + "." + string(t)
}

// Run forwards events until ctx is cancelled. Publish failures are logged
// and the event is dropped.
func (r *Relay) Run(ctx context.Context) error {
	subID, ch := r.bus.Subscribe(256)
	defer r.bus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to marshal event", "event_id", event.ID, "error", err)
				continue
			}
			if err := r.pub.Publish(r.Subject(event.Type), data); err != nil {
				slog.Warn("failed to relay event", "event_id", event.ID, "type", event.Type, "error", err)
			}
		}
	}
}
