package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// NATSPublisher publishes events to a NATS server. Subjects are formed as
// "<prefix>.<event type>", e.g. "infrasec.rule.approved".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *logger.Logger
}

// NewNATSPublisher connects to the given NATS URL
func NewNATSPublisher(url, prefix string, log *logger.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("infrasec"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.With("error", err.Error()).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.With("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	if prefix == "" {
		prefix = "infrasec"
	}

	log.With("url", url).Info("Connected to NATS")

	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: log.WithComponent("events"),
	}, nil
}

// Publish sends the event. Failures are logged and swallowed.
func (p *NATSPublisher) Publish(_ context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorWithErr(err, "Failed to marshal event")
		return
	}

	subject := p.prefix + "." + e.Type
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WithFields(map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		}).Warn("Failed to publish event")
	}
}

// Close drains the connection, flushing any buffered messages
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.ErrorWithErr(err, "Failed to drain NATS connection")
	}
}
