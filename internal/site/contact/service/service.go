package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"

	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/site/contact/models"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/platform/sentinel"
	"autoscuola/pkg/requestcontext"
)

// ReferenceAlphabet avoids characters that are easy to confuse on the phone.
const (
	ReferenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ReferenceLength   = 8
)

// Store persists submissions.
type Store interface {
	Save(ctx context.Context, s *models.Submission) error
}

// Publisher announces stored submissions.
type Publisher interface {
	Publish(ctx context.Context, event models.SubmittedEvent) error
}

type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// saveAttempts bounds retries after a reference collision.
const saveAttempts = 3

// save stores the form under a fresh ID and reference, drawing a new pair
// when the store reports the reference as taken.
func (s *Service) save(ctx context.Context, form models.Form) (*models.Submission, error) {
	for attempt := 1; ; attempt++ {
		ref, err := nanoid.Generate(ReferenceAlphabet, ReferenceLength)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate reference")
		}
		sub := &models.Submission{
			ID:        uuid.New(),
			Reference: ref,
			Form:      form,
			ClientIP:  requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			CreatedAt: requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
		}

		err = s.store.Save(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) || attempt == saveAttempts {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("store submission %s", sub.Reference))
		}
		s.logger.WarnContext(ctx, "contact reference collision, retrying",
			"reference", ref,
			"attempt", attempt,
		)
	}
}

// Submit validates, stores and announces a contact request. Publishing is
// best effort: the stored submission is the record.
func (s *Service) Submit(ctx context.Context, form models.Form) (*models.Submission, error) {
	requestID := requestcontext.RequestID(ctx)
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		s.metrics.IncContactSubmission("invalid")
		return nil, err
	}

	sub, err := s.save(ctx, form)
	if err != nil {
		s.metrics.IncContactSubmission("failed")
		s.logger.ErrorContext(ctx, "failed to store contact submission",
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}
	s.metrics.IncContactSubmission("stored")

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, models.NewSubmittedEvent(sub)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish contact submission",
				"request_id", requestID,
				"reference", sub.Reference,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "contact submission stored",
		"request_id", requestID,
		"reference", sub.Reference,
		"license", sub.License,
	)
	return sub, nil
}
