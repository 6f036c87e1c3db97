package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"capture-scheduler-go/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSNotifier publishes JSON notifications on <subject>.<kind>
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	closed  chan struct{}
}

const drainTimeout = 10 * time.Second

func NewNATSNotifier(cfg models.NotifyConfig) (*NATSNotifier, error) {
	url := cfg.NatsURL
	if url == "" {
		url = nats.DefaultURL
	}
	closed := make(chan struct{})
	conn, err := nats.Connect(url,
		nats.Name("capture-scheduler"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.L().Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			zap.L().Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(_ *nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	zap.L().Info("Connected to NATS", zap.String("url", url), zap.String("subject", cfg.Subject))
	return &NATSNotifier{conn: conn, subject: cfg.Subject, closed: closed}, nil
}

func (n *NATSNotifier) Notify(ctx context.Context, msg Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.conn.Publish(n.subject+"."+msg.Kind, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending messages and returns once the connection is closed
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		zap.L().Warn("Failed to drain NATS connection", zap.Error(err))
		n.conn.Close()
	}
	select {
	case <-n.closed:
	case <-time.After(drainTimeout + time.Second):
		zap.L().Warn("Timed out waiting for NATS drain")
	}
}
