package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	handler http.HandlerFunc
	server  *httptest.Server
	lastURL string
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastURL = r.URL.String()
		s.handler(w, r)
	}))
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) respond(status int, body string) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (s *ClientSuite) client(apiKey, placeID string) *Client {
	return NewClient(apiKey, placeID, WithDetailsURL(s.server.URL), WithTimeout(2*time.Second))
}

func (s *ClientSuite) TestFetchRating() {
	s.Run("OK response yields the rating", func() {
		s.respond(http.StatusOK, `{"status":"OK","result":{"rating":4.8,"user_ratings_total":3001}}`)

		r, err := s.client("key", "place").FetchRating(context.Background())

		s.Require().NoError(err)
		s.Equal(Rating{Rating: 4.8, UserRatingsTotal: 3001}, r)
		s.Contains(s.lastURL, "place_id=place")
		s.Contains(s.lastURL, "fields=rating%2Cuser_ratings_total")
		s.Contains(s.lastURL, "key=key")
	})

	s.Run("API status other than OK fails", func() {
		s.respond(http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`)

		_, err := s.client("key", "place").FetchRating(context.Background())

		s.ErrorIs(err, ErrExternalAPI)
		s.ErrorContains(err, "REQUEST_DENIED")
		s.ErrorContains(err, "bad key")
	})

	s.Run("non-2xx status fails", func() {
		s.respond(http.StatusInternalServerError, `{}`)

		_, err := s.client("key", "place").FetchRating(context.Background())

		s.ErrorIs(err, ErrExternalAPI)
		s.ErrorContains(err, "500")
	})

	s.Run("undecodable body fails", func() {
		s.respond(http.StatusOK, `not json`)

		_, err := s.client("key", "place").FetchRating(context.Background())
		s.ErrorIs(err, ErrExternalAPI)
	})

	s.Run("transport failure does not expose the API key", func() {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		c := NewClient("SECRET-API-KEY", "place", WithDetailsURL(closed.URL), WithTimeout(2*time.Second))

		_, err := c.FetchRating(context.Background())

		s.ErrorIs(err, ErrExternalAPI)
		s.ErrorContains(err, "request failed")
		s.NotContains(err.Error(), "SECRET-API-KEY")
		s.NotContains(err.Error(), closed.URL)
	})

	s.Run("missing configuration fails without a request", func() {
		s.lastURL = ""

		_, err := s.client("", "place").FetchRating(context.Background())
		s.ErrorIs(err, ErrExternalAPI)

		_, err = s.client("key", "").FetchRating(context.Background())
		s.ErrorIs(err, ErrExternalAPI)
		s.Empty(s.lastURL)
	})
}
