package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Fetcher retrieves the current rating.
type Fetcher interface {
	FetchRating(ctx context.Context) (Rating, error)
}

// Destination receives the encoded snapshot (a file, a bucket).
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Updater fetches a rating and writes the snapshot. The primary destination
// must succeed; mirrors are best effort.
type Updater struct {
	fetcher Fetcher
	primary Destination
	mirrors []Destination
	logger  *slog.Logger
	now     func() time.Time
}

type UpdaterOption func(*Updater)

// WithMirror adds a best-effort destination written after the primary.
func WithMirror(d Destination) UpdaterOption {
	return func(u *Updater) {
		if d != nil {
			u.mirrors = append(u.mirrors, d)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		u.now = now
	}
}

func NewUpdater(fetcher Fetcher, primary Destination, logger *slog.Logger, opts ...UpdaterOption) *Updater {
	u := &Updater{
		fetcher: fetcher,
		primary: primary,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run refreshes the snapshot once. A fetch failure is recovered by writing
// the fallback snapshot; only a failed primary write is returned.
func (u *Updater) Run(ctx context.Context) (Snapshot, error) {
	now := u.now()

	var snap Snapshot
	rating, err := u.fetcher.FetchRating(ctx)
	if err != nil {
		u.logger.WarnContext(ctx, "places refresh failed, using fallback data", "error", err)
		snap = FallbackSnapshot(now, err)
	} else {
		snap = NewSnapshot(rating, now)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return snap, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := u.primary.Write(ctx, data); err != nil {
		return snap, fmt.Errorf("write snapshot: %w", err)
	}
	for _, m := range u.mirrors {
		if err := m.Write(ctx, data); err != nil {
			u.logger.ErrorContext(ctx, "snapshot mirror write failed", "error", err)
		}
	}

	u.logger.InfoContext(ctx, "places snapshot written",
		"rating", snap.Rating,
		"user_ratings_total", snap.UserRatingsTotal,
		"next_update", snap.NextUpdate,
		"fallback", snap.Error != "",
	)
	return snap, nil
}
