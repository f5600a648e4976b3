package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const smsGatewayTimeout = 10 * time.Second

// SMSGatewayNotifier posts messages as JSON to an HTTP SMS provider.
type SMSGatewayNotifier struct {
	url    string
	token  string
	logger *slog.Logger
}

// NewSMSGatewayNotifier builds a notifier for the gateway at url. The token, when
// set, is sent as a bearer credential.
func NewSMSGatewayNotifier(url, token string, logger *slog.Logger) *SMSGatewayNotifier {
	return &SMSGatewayNotifier{url: url, token: token, logger: logger}
}

type smsPayload struct {
	Receptor string `json:"receptor"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
}

// Send delivers the message. Non-2xx responses are reported as errors.
func (n *SMSGatewayNotifier) Send(ctx context.Context, message Message) error {
	if n.url == "" {
		return errors.New("sms gateway url is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(n.url)
	agent.JSON(smsPayload{Receptor: message.Destination, Message: message.Body, Kind: message.Kind})
	agent.Timeout(smsGatewayTimeout)
	if n.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+n.token)
	}

	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		n.logger.Warn("sms gateway request failed", slog.String("destination", Mask(message.Destination)), slog.Any("error", errs[0]))
		return fmt.Errorf("sms gateway: %w", errs[0])
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		n.logger.Warn("sms gateway rejected message", slog.String("destination", Mask(message.Destination)), slog.Int("status", status))
		return fmt.Errorf("sms gateway returned status %d", status)
	}
	return nil
}
