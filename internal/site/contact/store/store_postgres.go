package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"autoscuola/internal/site/contact/models"
	"autoscuola/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists submissions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies pending schema migrations.
func Migrate(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "contact_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

const insertSubmission = `INSERT INTO contact_submissions
    (id, reference, name, email, phone, license, message, client_ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *PostgresStore) Save(ctx context.Context, sub *models.Submission) error {
	_, err := s.db.ExecContext(ctx, insertSubmission,
		sub.ID, sub.Reference, sub.Name, sub.Email, sub.Phone, sub.License,
		sub.Message, sub.ClientIP, sub.UserAgent, sub.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("save contact submission %s: %w", sub.Reference, sentinel.ErrConflict)
		}
		return fmt.Errorf("save contact submission: %w", err)
	}
	return nil
}
