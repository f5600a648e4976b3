package notification

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/logging"
)

func startGateway(t *testing.T, status int, received chan<- smsPayload) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/send", func(c *fiber.Ctx) error {
		var p smsPayload
		if err := json.Unmarshal(c.Body(), &p); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		if c.Get(fiber.HeaderAuthorization) != "Bearer secret" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		received <- p
		return c.SendStatus(status)
	})
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String() + "/send"
}

func TestSMSGatewayNotifierDelivers(t *testing.T) {
	received := make(chan smsPayload, 1)
	url := startGateway(t, fiber.StatusOK, received)

	n := NewSMSGatewayNotifier(url, "secret", logging.Discard())
	err := n.Send(context.Background(), Message{Kind: KindOTPCode, Destination: "0123456789", Body: "1234"})
	require.NoError(t, err)

	got := <-received
	require.Equal(t, "0123456789", got.Receptor)
	require.Equal(t, "1234", got.Message)
	require.Equal(t, KindOTPCode, got.Kind)
}

func TestSMSGatewayNotifierReportsRejection(t *testing.T) {
	received := make(chan smsPayload, 1)
	url := startGateway(t, fiber.StatusServiceUnavailable, received)

	n := NewSMSGatewayNotifier(url, "secret", logging.Discard())
	err := n.Send(context.Background(), Message{Kind: KindOTPCode, Destination: "0123456789", Body: "1234"})
	require.Error(t, err)
}

func TestLoggerNotifierToleratesNil(t *testing.T) {
	var n *LoggerNotifier
	require.NoError(t, n.Send(context.Background(), Message{Kind: KindOTPCode}))
}

func TestMaskKeepsLastFourDigits(t *testing.T) {
	require.Equal(t, "******6789", Mask("0123456789"))
	require.Equal(t, "123", Mask("123"))
}
