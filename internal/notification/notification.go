package notification

import (
	"context"
	"log/slog"
	"strings"
)

// KindOTPCode marks a one-time signup or login code.
const KindOTPCode = "otp_code"

// Message is a text addressed to a phone number.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers messages to users.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes messages to the logger instead of sending them. It
// is the development stand-in for the SMS gateway, so the body is logged.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a notifier that logs every message.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send logs the message. A nil notifier drops it.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification.dispatched",
		slog.String("kind", message.Kind),
		slog.String("destination", Mask(message.Destination)),
		slog.String("body", message.Body),
	)
	return nil
}

// Mask hides all but the last four characters of a phone number.
func Mask(destination string) string {
	const visible = 4
	if len(destination) <= visible {
		return destination
	}
	return strings.Repeat("*", len(destination)-visible) + destination[len(destination)-visible:]
}
