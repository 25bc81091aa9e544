package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
)

const (
	// KindPurchaseSubmitted tells a product owner that a buyer was asked to confirm a payment.
	KindPurchaseSubmitted = "purchase_submitted"

	// SubjectPrefix is the NATS subject namespace; the kind is appended.
	SubjectPrefix = "agura.notifications."
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes JSON-encoded messages on SubjectPrefix+Kind.
type NATSNotifier struct {
	pub Publisher
}

// NewNATSNotifier wraps a NATS connection.
func NewNATSNotifier(pub Publisher) *NATSNotifier {
	return &NATSNotifier{pub: pub}
}

func (n *NATSNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	if err := n.pub.Publish(SubjectPrefix+message.Kind, payload); err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}
