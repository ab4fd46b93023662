// Package places refreshes the cached review rating shown on the site.
package places

import "time"

// Fallback values written when the places API cannot be reached.
const (
	FallbackRating           = 4.9
	FallbackUserRatingsTotal = 2947
)

// RefreshInterval is how long a snapshot is considered current.
const RefreshInterval = 24 * time.Hour

// Matches the millisecond ISO-8601 form the site's scripts parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Rating is the subset of place details the site displays.
type Rating struct {
	Rating           float64
	UserRatingsTotal int
}

// Snapshot is the JSON document served as places-data.json.
type Snapshot struct {
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	LastUpdated      string  `json:"lastUpdated"`
	NextUpdate       string  `json:"nextUpdate"`
	Error            string  `json:"error,omitempty"`
}

// NewSnapshot stamps a fetched rating. Zero values fall back to the static
// figures.
func NewSnapshot(r Rating, now time.Time) Snapshot {
	if r.Rating == 0 {
		r.Rating = FallbackRating
	}
	if r.UserRatingsTotal == 0 {
		r.UserRatingsTotal = FallbackUserRatingsTotal
	}
	return Snapshot{
		Rating:           r.Rating,
		UserRatingsTotal: r.UserRatingsTotal,
		LastUpdated:      formatTime(now),
		NextUpdate:       formatTime(now.Add(RefreshInterval)),
	}
}

// FallbackSnapshot records the static figures along with the failure.
func FallbackSnapshot(now time.Time, cause error) Snapshot {
	s := NewSnapshot(Rating{}, now)
	if cause != nil {
		s.Error = cause.Error()
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
