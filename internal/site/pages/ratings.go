package pages

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autoscuola/internal/places"
	"autoscuola/pkg/requestcontext"
)

const (
	// placesFile is the review snapshot written by places-refresh into the
	// site root.
	placesFile = "places-data.json"
	placesAttr = "data-places"
)

// bindRatings fills [data-places] elements from the review snapshot. The
// static figures in the page stay when the snapshot is missing or unreadable.
func (h *Handler) bindRatings(ctx context.Context, doc *goquery.Document) {
	targets := doc.Find("[" + placesAttr + "]")
	if targets.Length() == 0 {
		return
	}

	raw, err := fs.ReadFile(h.fsys, placesFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.WarnContext(ctx, "places snapshot unreadable",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return
	}
	var snap places.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		h.logger.WarnContext(ctx, "places snapshot malformed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}

	targets.Each(func(_ int, s *goquery.Selection) {
		field, _ := s.Attr(placesAttr)
		switch strings.TrimSpace(field) {
		case "rating":
			if snap.Rating > 0 {
				s.SetText(strconv.FormatFloat(snap.Rating, 'f', 1, 64))
			}
		case "user_ratings_total":
			if snap.UserRatingsTotal > 0 {
				s.SetText(strconv.Itoa(snap.UserRatingsTotal))
			}
		}
	})
}
