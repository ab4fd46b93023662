package publisher

import (
	"context"
	"log/slog"

	"autoscuola/internal/site/contact/models"
	"autoscuola/pkg/requestcontext"
)

// LogPublisher records events in the application log when no broker is
// configured. Contact details are not logged.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.SubmittedEvent) error {
	p.logger.InfoContext(ctx, "contact.submitted",
		"request_id", requestcontext.RequestID(ctx),
		"id", event.ID,
		"reference", event.Reference,
		"license", event.License,
	)
	return nil
}
