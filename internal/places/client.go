package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultDetailsURL is the place details endpoint.
const DefaultDetailsURL = "https://maps.googleapis.com/maps/api/place/details/json"

const detailFields = "rating,user_ratings_total"

// ErrExternalAPI covers every way a refresh can fail before a rating is in
// hand: missing configuration, transport errors, bad statuses and bodies.
var ErrExternalAPI = errors.New("places API request failed")

var tracer = otel.Tracer("autoscuola/places")

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
	} `json:"result"`
}

// Client fetches the rating of a single place.
type Client struct {
	http       *resty.Client
	detailsURL string
	apiKey     string
	placeID    string
}

type ClientOption func(*Client)

// WithDetailsURL points the client at another endpoint, such as a test server.
func WithDetailsURL(u string) ClientOption {
	return func(c *Client) {
		c.detailsURL = u
	}
}

// WithTimeout bounds a single request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

func NewClient(apiKey, placeID string, opts ...ClientOption) *Client {
	c := &Client{
		http:       resty.New().SetTimeout(15 * time.Second),
		detailsURL: DefaultDetailsURL,
		apiKey:     apiKey,
		placeID:    placeID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRating performs one details request. Every failure wraps ErrExternalAPI.
func (c *Client) FetchRating(ctx context.Context) (rating Rating, err error) {
	ctx, span := tracer.Start(ctx, "places.FetchRating")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.apiKey == "" {
		return Rating{}, fmt.Errorf("%w: API key not configured", ErrExternalAPI)
	}
	if c.placeID == "" {
		return Rating{}, fmt.Errorf("%w: place ID not configured", ErrExternalAPI)
	}
	span.SetAttributes(attribute.String("places.place_id", c.placeID))

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"place_id": c.placeID,
			"fields":   detailFields,
			"key":      c.apiKey,
		}).
		Get(c.detailsURL)
	if err != nil {
		return Rating{}, fmt.Errorf("%w: request failed: %w", ErrExternalAPI, withoutURL(err))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		return Rating{}, fmt.Errorf("%w: HTTP status %d", ErrExternalAPI, resp.StatusCode())
	}

	var body detailsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Rating{}, fmt.Errorf("%w: decode response: %w", ErrExternalAPI, err)
	}
	if body.Status != "OK" {
		msg := body.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return Rating{}, fmt.Errorf("%w: status %s: %s", ErrExternalAPI, body.Status, msg)
	}

	return Rating{
		Rating:           body.Result.Rating,
		UserRatingsTotal: body.Result.UserRatingsTotal,
	}, nil
}

// withoutURL drops the request URL from transport errors. The URL carries
// the API key and the error text ends up in the public snapshot.
func withoutURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
