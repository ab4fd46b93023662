package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"autoscuola/internal/consent"
	consenthandler "autoscuola/internal/consent/handler"
	"autoscuola/internal/platform/config"
	"autoscuola/internal/platform/logger"
	"autoscuola/internal/platform/metrics"
	ratelimit "autoscuola/internal/ratelimit/middleware"
	rlmodels "autoscuola/internal/ratelimit/models"
	"autoscuola/internal/ratelimit/store/bucket"
	contacthandler "autoscuola/internal/site/contact/handler"
	"autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/contact/publisher"
	"autoscuola/internal/site/contact/service"
	contactstore "autoscuola/internal/site/contact/store"
	"autoscuola/internal/site/fragments"
	"autoscuola/internal/site/pages"
	"autoscuola/internal/site/paths"
	"autoscuola/pkg/testutil"
)

const siteIndex = `<!DOCTYPE html><html><head><title>Autoscuola</title></head><body>
<div id="navbar-placeholder"></div>
<section id="contact">
<div id="maps-placeholder" data-consent-capability="maps"><p>Mappa disattivata</p></div>
<div id="google-maps-container" style="display: none;" data-consent-capability="maps"></div>
<form class="contact__form" action="/contact" method="post"></form>
</section>
<div id="footer-placeholder"></div>
</body></html>`

// countingStore records how many submissions reached the store.
type countingStore struct {
	*contactstore.InMemoryStore
	mu    sync.Mutex
	saved int
}

func (c *countingStore) Save(ctx context.Context, sub *models.Submission) error {
	if err := c.InMemoryStore.Save(ctx, sub); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved++
	return nil
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	store  *countingStore
	checks map[string]HealthCheck
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	fsys := fstest.MapFS{
		"index.html":             {Data: []byte(siteIndex)},
		"components/navbar.html": {Data: []byte(`<nav><a href="../index.html">Home</a></nav>`)},
		"components/footer.html": {Data: []byte(`<footer><a href="../privacy-cookies.html">Privacy</a></footer>`)},
	}
	log := logger.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	site := config.DefaultSite()
	resolver := paths.NewResolver("/")
	gates := consent.NewFactory(site, log, m)

	s.store = &countingStore{InMemoryStore: contactstore.NewInMemoryStore()}
	svc := service.New(s.store, log, service.WithPublisher(publisher.NewLog(log)), service.WithMetrics(m))
	s.checks = map[string]HealthCheck{}

	router := NewRouter(Dependencies{
		Logger:        log,
		Metrics:       m,
		Gatherer:      reg,
		Consent:       consenthandler.New(gates, log),
		Contact:       contacthandler.New(svc, site.Phone, resolver, log),
		Pages:         pages.New(fsys, gates, fragments.New(fsys, resolver, fragments.WithMetrics(m)), resolver, log),
		RateLimit:     ratelimit.New(bucket.NewInMemoryBucketStore(), log, ratelimit.WithMetrics(m)),
		ContactPolicy: rlmodels.Policy{Limit: 2, Window: time.Minute},
		Checks:        s.checks,
	})
	s.server = httptest.NewServer(router)

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{Jar: jar}
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) page(resp *http.Response) *goquery.Document {
	s.T().Helper()
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	s.Require().NoError(err)
	return doc
}

func (s *RouterSuite) get(path string) *goquery.Document {
	resp, err := s.client.Get(s.server.URL + path)
	s.Require().NoError(err)
	return s.page(resp)
}

func (s *RouterSuite) post(path string, form url.Values) *goquery.Document {
	resp, err := s.client.PostForm(s.server.URL+path, form)
	s.Require().NoError(err)
	return s.page(resp)
}

func (s *RouterSuite) TestConsentJourney() {
	back := url.Values{"return_to": {"/index.html"}}

	doc := s.get("/index.html")
	s.Equal(1, doc.Find("#cookieBanner").Length(), "first visit shows the banner")
	s.Equal(0, doc.Find("iframe").Length())
	s.Equal(1, doc.Find("#navbar-placeholder nav").Length(), "navbar fragment injected")

	doc = s.post("/consent/decline", back)
	s.Equal(0, doc.Find("#cookieBanner").Length())
	s.Equal(0, doc.Find("iframe").Length())
	s.Equal(1, doc.Find(".maps-consent-message").Length(), "declined map shows the consent control")

	action, ok := doc.Find(".maps-consent-message form").Attr("action")
	s.Require().True(ok)
	s.Equal("/consent/reopen", action)

	doc = s.post(action, url.Values{"return_to": {"/index.html"}, "capability": {"maps"}})
	s.Equal(1, doc.Find("#cookieBanner").Length(), "reopen brings the prompt back")
	s.Equal(0, doc.Find("iframe").Length())

	doc = s.post("/consent/accept", back)
	s.Equal(0, doc.Find("#cookieBanner").Length())
	s.Equal(1, doc.Find("#google-maps-container iframe").Length(), "accepting loads exactly one map")

	doc = s.get("/index.html")
	s.Equal(1, doc.Find("iframe").Length(), "decision persists across visits")
}

func (s *RouterSuite) TestConsentPreferences() {
	doc := s.post("/consent/preferences", url.Values{"return_to": {"/index.html"}, "maps": {"on"}})
	s.Equal(1, doc.Find("iframe").Length())

	resp, err := s.client.Get(s.server.URL + "/consent")
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	s.Contains(string(body), `"maps":true`)
}

func (s *RouterSuite) TestContact() {
	s.Run("json submission is stored", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.server.URL+"/contact",
			models.Form{Name: "Mario", Email: "mario@example.it", Message: "Info patente B"})
		req.RequestURI = ""
		resp, err := s.client.Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()

		s.Equal(http.StatusCreated, resp.StatusCode)
		s.Equal(1, s.store.count())
	})

	s.Run("form submission shows the notice on the page", func() {
		doc := s.post("/contact", url.Values{
			"return_to": {"/index.html"},
			"name":      {"Anna"},
			"email":     {"anna@example.it"},
			"message":   {"Orari?"},
		})
		s.Equal(models.MsgSent, doc.Find(".contact__form .form-message").Text())
		s.Equal(2, s.store.count())
	})

	s.Run("rate limited form post goes back to the page with the failure notice", func() {
		noFollow := &http.Client{Jar: s.client.Jar, CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := noFollow.PostForm(s.server.URL+"/contact", url.Values{"return_to": {"/index.html"}, "name": {"x"}})
		s.Require().NoError(err)
		resp.Body.Close()

		s.Equal(http.StatusSeeOther, resp.StatusCode)
		s.NotEmpty(resp.Header.Get("Retry-After"))
		s.Equal("/index.html?contact=failed#contact", resp.Header.Get("Location"))
		s.Equal(2, s.store.count())

		doc := s.get("/index.html?contact=failed")
		s.Equal(models.MsgFailed, doc.Find(".contact__form .form-message").Text())
	})

	s.Run("rate limited JSON submission gets 429", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, s.server.URL+"/contact",
			models.Form{Name: "Mario", Email: "mario@example.it", Message: "Ancora"})
		req.RequestURI = ""
		resp, err := s.client.Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()

		s.Equal(http.StatusTooManyRequests, resp.StatusCode)
		s.NotEmpty(resp.Header.Get("Retry-After"))
	})
}

func (s *RouterSuite) TestContactAction() {
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/contact-action?from=/patenti/b.html", nil)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36")

	resp, err := client.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.True(strings.HasPrefix(resp.Header.Get("Location"), "tel:"))
}

func (s *RouterSuite) TestOperationalEndpoints() {
	s.Run("healthz is ok without failing checks", func() {
		resp, err := s.client.Get(s.server.URL + "/healthz")
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
		s.NotEmpty(resp.Header.Get("X-Request-ID"))
	})

	s.Run("healthz reports failing checks", func() {
		s.checks["redis"] = func(context.Context) error { return errors.New("down") }
		defer delete(s.checks, "redis")

		resp, err := s.client.Get(s.server.URL + "/healthz")
		s.Require().NoError(err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
		s.Contains(string(body), "redis")
	})

	s.Run("metrics exposes site counters", func() {
		s.get("/index.html")
		resp, err := s.client.Get(s.server.URL + "/metrics")
		s.Require().NoError(err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		s.Contains(string(body), "autoscuola_consent_prompts_shown_total")
	})
}
