package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"autoscuola/internal/platform/logger"
	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/contact/service/mocks"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/platform/sentinel"
	"autoscuola/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Store,Publisher
type ContactServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	service   *Service
}

func TestContactServiceSuite(t *testing.T) {
	suite.Run(t, new(ContactServiceSuite))
}

func (s *ContactServiceSuite) SetupSubTest() {
	ctrl := gomock.NewController(s.T())
	s.store = mocks.NewMockStore(ctrl)
	s.publisher = mocks.NewMockPublisher(ctrl)
	s.service = New(s.store, logger.Discard(),
		WithPublisher(s.publisher),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.now = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.4", "Mozilla/5.0")
}

func form() models.Form {
	return models.Form{
		Name:    " Giulia ",
		Email:   "giulia@example.it",
		License: "A2",
		Message: "Quando inizia il prossimo corso?",
	}
}

func (s *ContactServiceSuite) TestSubmit() {
	s.Run("stores and publishes a valid submission", func() {
		var stored *models.Submission
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub *models.Submission) error {
				stored = sub
				return nil
			})
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, ev models.SubmittedEvent) error {
				s.Equal(stored.ID.String(), ev.ID)
				s.Equal("Giulia", ev.Name)
				return nil
			})

		sub, err := s.service.Submit(s.ctx, form())
		s.Require().NoError(err)
		s.Same(stored, sub)
		s.Equal("Giulia", sub.Name)
		s.Len(sub.Reference, ReferenceLength)
		s.Equal("198.51.100.4", sub.ClientIP)
		s.Equal(s.now, sub.CreatedAt)
	})

	s.Run("invalid form never reaches the store", func() {
		f := form()
		f.Email = "not-an-email"

		_, err := s.service.Submit(s.ctx, f)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("store failure is an internal error", func() {
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Submit(s.ctx, form())
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInternal))
	})

	s.Run("reference collision retries with a fresh reference", func() {
		var refs []string
		var ids []string
		gomock.InOrder(
			s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, sub *models.Submission) error {
					refs = append(refs, sub.Reference)
					ids = append(ids, sub.ID.String())
					return fmt.Errorf("save: %w", sentinel.ErrConflict)
				}),
			s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, sub *models.Submission) error {
					refs = append(refs, sub.Reference)
					ids = append(ids, sub.ID.String())
					return nil
				}),
		)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		sub, err := s.service.Submit(s.ctx, form())
		s.Require().NoError(err)
		s.Require().Len(refs, 2)
		s.NotEqual(refs[0], refs[1])
		s.NotEqual(ids[0], ids[1])
		s.Equal(refs[1], sub.Reference)
	})

	s.Run("persistent collisions give up as an internal error", func() {
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict).Times(saveAttempts)

		_, err := s.service.Submit(s.ctx, form())
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInternal))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("publish failure does not fail the submission", func() {
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		sub, err := s.service.Submit(s.ctx, form())
		s.Require().NoError(err)
		s.NotEmpty(sub.Reference)
	})
}
