// Package notify delivers one-time codes out of band. The service layer
// depends only on the Sender interface; wiring picks the implementation.
package notify

import (
	"context"
	"log/slog"

	"github.com/driftlock/authd/internal/auth/domain"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to a destination on the given channel.
// Implementations must respect ctx cancellation; the OTP engine calls
// Send with a short deadline so a slow provider cannot stall the request.
type Sender interface {
	Send(ctx context.Context, channel domain.Channel, destination string, msg Message) error
}

// LogSender writes notifications to the structured log instead of an
// external provider. Default in development and tests.
type LogSender struct {
	Log *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, channel domain.Channel, destination string, msg Message) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification dispatched",
		"channel", string(channel),
		"destination", destination,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
