//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/contact/store"
	"autoscuola/pkg/platform/sentinel"
	"autoscuola/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(store.Migrate(s.postgres.DB))
	// A second run is a no-op.
	s.Require().NoError(store.Migrate(s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contact_submissions"))
}

func newSubmission(ref string, at time.Time) *models.Submission {
	return &models.Submission{
		ID:        uuid.New(),
		Reference: ref,
		Form:      models.Form{Name: "Anna", Email: "anna@example.it", Message: "Ciao"},
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestSaveRoundTrip() {
	ctx := context.Background()
	sub := newSubmission("AAAA1111", time.Now())
	sub.ClientIP = "203.0.113.9"
	s.Require().NoError(s.store.Save(ctx, sub))

	var (
		id        uuid.UUID
		name      string
		clientIP  string
		createdAt time.Time
	)
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT id, name, client_ip, created_at FROM contact_submissions WHERE reference = $1`, "AAAA1111",
	).Scan(&id, &name, &clientIP, &createdAt)
	s.Require().NoError(err)
	s.Equal(sub.ID, id)
	s.Equal("Anna", name)
	s.Equal("203.0.113.9", clientIP)
	s.True(sub.CreatedAt.Equal(createdAt))
}

func (s *PostgresStoreSuite) TestDuplicateReferenceIsConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, newSubmission("DUPL0001", time.Now())))
	s.ErrorIs(s.store.Save(ctx, newSubmission("DUPL0001", time.Now())), sentinel.ErrConflict)
}
