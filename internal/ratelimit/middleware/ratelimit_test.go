package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"autoscuola/internal/platform/logger"
	"autoscuola/internal/ratelimit/models"
	"autoscuola/pkg/platform/circuit"
	"autoscuola/pkg/requestcontext"
	"autoscuola/pkg/testutil"
)

type stubStore struct {
	result *models.RateLimitResult
	err    error
	keys   []string
}

func (s *stubStore) Allow(_ context.Context, key string, _ int, _ time.Duration) (*models.RateLimitResult, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

type RateLimitMiddlewareSuite struct {
	suite.Suite
}

func TestRateLimitMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RateLimitMiddlewareSuite))
}

var policy = models.Policy{Limit: 5, Window: 10 * time.Minute}

func (s *RateLimitMiddlewareSuite) serve(store BucketStore, opts ...Option) (*httptest.ResponseRecorder, bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	mw := New(store, logger.Discard(), opts...).RateLimit(models.ClassContact, policy)

	req := httptest.NewRequest(http.MethodPost, "/contact", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test"))
	return testutil.DoRequest(mw(next), req), called
}

func (s *RateLimitMiddlewareSuite) TestRateLimit() {
	s.Run("allowed request passes with headers", func() {
		store := &stubStore{result: &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4, ResetAt: time.Unix(100, 0)}}
		rr, called := s.serve(store)

		s.True(called)
		s.Equal("5", rr.Header().Get("X-RateLimit-Limit"))
		s.Equal("4", rr.Header().Get("X-RateLimit-Remaining"))
		s.Equal("100", rr.Header().Get("X-RateLimit-Reset"))
		s.Equal([]string{"ratelimit:contact:ip:203.0.113.7"}, store.keys)
	})

	s.Run("rejected request gets 429", func() {
		store := &stubStore{result: &models.RateLimitResult{Allowed: false, Limit: 5, RetryAfter: 42, ResetAt: time.Unix(100, 0)}}
		rr, called := s.serve(store)

		s.False(called)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
		s.Equal("42", rr.Header().Get("Retry-After"))
	})

	s.Run("store failure fails open", func() {
		rr, called := s.serve(&stubStore{err: errors.New("redis down")})

		s.True(called)
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("disabled skips the store", func() {
		store := &stubStore{}
		_, called := s.serve(store, WithDisabled(true))

		s.True(called)
		s.Empty(store.keys)
	})
}

func (s *RateLimitMiddlewareSuite) TestFallback() {
	allowed := &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4, ResetAt: time.Unix(100, 0)}

	s.Run("breaker routes to the fallback once open and back after recovery", func() {
		primary := &stubStore{err: errors.New("redis down")}
		fallback := &stubStore{result: &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 1, ResetAt: time.Unix(200, 0)}}
		breaker := circuit.New("ratelimit", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
		mw := New(primary, logger.Discard(), WithFallback(fallback, breaker)).RateLimit(models.ClassContact, policy)
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		do := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/contact", nil)
			req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test"))
			return testutil.DoRequest(mw(next), req)
		}

		rr := do()
		s.Equal(http.StatusNoContent, rr.Code, "below threshold the request fails open")
		s.Empty(rr.Header().Get("X-RateLimit-Status"))
		s.Empty(fallback.keys)

		rr = do()
		s.Equal("degraded", rr.Header().Get("X-RateLimit-Status"))
		s.Equal("1", rr.Header().Get("X-RateLimit-Remaining"))
		s.True(breaker.IsOpen())

		primary.err = nil
		primary.result = allowed
		rr = do()
		s.Empty(rr.Header().Get("X-RateLimit-Status"))
		s.Equal("4", rr.Header().Get("X-RateLimit-Remaining"))
		s.False(breaker.IsOpen())
	})

	s.Run("fallback rejection is enforced", func() {
		primary := &stubStore{err: errors.New("redis down")}
		fallback := &stubStore{result: &models.RateLimitResult{Allowed: false, Limit: 5, RetryAfter: 9, ResetAt: time.Unix(100, 0)}}
		rr, called := s.serve(primary, WithFallback(fallback, circuit.New("ratelimit", circuit.WithFailureThreshold(1))))

		s.False(called)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
		s.Equal("degraded", rr.Header().Get("X-RateLimit-Status"))
	})

	s.Run("nil breaker gets a default", func() {
		primary := &stubStore{result: allowed}
		rr, called := s.serve(primary, WithFallback(&stubStore{}, nil))
		s.True(called)
		s.Equal(http.StatusNoContent, rr.Code)
	})
}

func (s *RateLimitMiddlewareSuite) TestRateLimitForm() {
	rejected := &models.RateLimitResult{Allowed: false, Limit: 5, RetryAfter: 30, ResetAt: time.Unix(100, 0)}
	back := func(*http.Request) string { return "/index.html?contact=failed#contact" }
	serve := func(req *http.Request) (*httptest.ResponseRecorder, bool) {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		})
		mw := New(&stubStore{result: rejected}, logger.Discard()).RateLimitForm(models.ClassContact, policy, back)
		req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test"))
		return testutil.DoRequest(mw(next), req), called
	}

	s.Run("rejected form post is sent back to the page", func() {
		rr, called := serve(testutil.NewFormRequest(s.T(), "/contact", url.Values{"name": {"Anna"}}))

		s.False(called)
		s.Equal(http.StatusSeeOther, rr.Code)
		s.Equal("/index.html?contact=failed#contact", rr.Header().Get("Location"))
		s.Equal("30", rr.Header().Get("Retry-After"))
	})

	s.Run("rejected JSON request keeps the error envelope", func() {
		rr, called := serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/contact", map[string]string{"name": "Anna"}))

		s.False(called)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
	})
}

func TestNewIPKeyEscapesIPv6(t *testing.T) {
	assert.Equal(t, "ratelimit:contact:ip:2001_db8__1", models.NewIPKey(models.ClassContact, "2001:db8::1"))
}
