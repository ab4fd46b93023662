package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	pstrings "autoscuola/pkg/platform/strings"
)

// DefaultMapEmbedURL is the Google Maps embed for the school's address.
const DefaultMapEmbedURL = "https://www.google.com/maps/embed?pb=!1m18!1m12!1m3!1d11180.5!2d12.2436!3d45.6669!2m3!1f0!2f0!3f0!3m2!1i1024!2i768!4f13.1!3m3!1m2!1s0x477935b1234567890%3A0x1234567890abcdef!2sViale%20Trento%20e%20Trieste%2C%2010D%2C%2031100%20Treviso%20TV%2C%20Italy!5e0!3m2!1sen!2sit!4v1234567890123!5m2!1sen!2sit"

// DefaultThirdPartyDomains lists the domains whose cookies are expired,
// best effort, when the visitor declines.
var DefaultThirdPartyDomains = []string{".google.com", ".googleapis.com", ".gstatic.com", ".doubleclick.net"}

// Server captures process level configuration read from the environment.
type Server struct {
	Addr        string
	Environment string
	LogFormat   string
	LogLevel    slog.Level
	SiteFile    string

	// TrustProxyHeaders makes the server take the client IP from
	// X-Forwarded-For / X-Real-IP. Only set it behind a proxy that
	// overwrites those headers.
	TrustProxyHeaders bool

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Contact  ContactConfig

	Site Site
}

// RedisConfig configures the optional rate-limit backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional contact submission store.
type PostgresConfig struct {
	URL string
}

// KafkaConfig configures the optional contact event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ContactConfig bounds contact form submissions per client IP.
type ContactConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// Places configures the review snapshot refresh.
type Places struct {
	APIKey     string
	PlaceID    string
	DetailsURL string
	Output     string
	Timeout    time.Duration
	LogFormat  string
	LogLevel   slog.Level

	S3 S3Config
}

// S3Config names the optional bucket the snapshot is mirrored to.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string
}

// Enabled reports whether an upload target is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Site is the content-level configuration loaded from site.toml.
type Site struct {
	// Name prefixes the consent cookie: {name}_cookie_consent.
	Name string `toml:"name"`
	// Root is the directory holding the HTML pages, components/ and assets.
	Root  string `toml:"root"`
	Phone string `toml:"phone"`

	MapEmbedURL       string   `toml:"map_embed_url"`
	ThirdPartyDomains []string `toml:"third_party_domains"`
	ConsentTTLDays    int      `toml:"consent_ttl_days"`
	SecureCookies     bool     `toml:"secure_cookies"`

	PrivacyPage string `toml:"privacy_page"`
}

// ConsentCookieName is the single key holding the visitor's decision.
func (s Site) ConsentCookieName() string {
	return s.Name + "_cookie_consent"
}

// ConsentTTL is the lifetime of a freshly written decision.
func (s Site) ConsentTTL() time.Duration {
	return time.Duration(s.ConsentTTLDays) * 24 * time.Hour
}

// DefaultSite returns the built-in site configuration.
func DefaultSite() Site {
	return Site{
		Name:              "autoscuola",
		Root:              "./site",
		Phone:             "+390422000000",
		MapEmbedURL:       DefaultMapEmbedURL,
		ThirdPartyDomains: append([]string(nil), DefaultThirdPartyDomains...),
		ConsentTTLDays:    365,
		PrivacyPage:       "privacy-cookies.html",
	}
}

// FromEnv builds the server config from environment variables so main stays
// lean. Outside production a .env file in the working directory is loaded
// first; its absence is not an error.
func FromEnv() (Server, error) {
	env := getEnv("APP_ENV", "development")
	if env != "production" {
		_ = godotenv.Load()
	}

	cfg := Server{
		Addr:              getEnv("AUTOSCUOLA_ADDR", ":8080"),
		Environment:       env,
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogLevel:          parseLevel(os.Getenv("LOG_LEVEL")),
		SiteFile:          getEnv("SITE_CONFIG", "site.toml"),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{URL: os.Getenv("DATABASE_URL")},
		Kafka: KafkaConfig{
			Brokers: pstrings.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			Topic:   getEnv("KAFKA_CONTACT_TOPIC", "contact.submitted"),
		},
		Contact: ContactConfig{
			RateLimit:  getEnvInt("CONTACT_RATE_LIMIT", 5),
			RateWindow: getEnvDuration("CONTACT_RATE_WINDOW", 10*time.Minute),
		},
	}

	site, err := LoadSite(cfg.SiteFile)
	if err != nil {
		return Server{}, err
	}
	if root := os.Getenv("SITE_ROOT"); root != "" {
		site.Root = root
	}
	cfg.Site = site
	return cfg, nil
}

// PlacesFromEnv builds the refresh config. Like FromEnv it loads .env outside
// production.
func PlacesFromEnv() Places {
	if getEnv("APP_ENV", "development") != "production" {
		_ = godotenv.Load()
	}
	return Places{
		APIKey:     os.Getenv("GOOGLE_PLACES_API_KEY"),
		PlaceID:    os.Getenv("PLACE_ID"),
		DetailsURL: os.Getenv("PLACES_DETAILS_URL"),
		Output:     getEnv("PLACES_OUTPUT", "./site/places-data.json"),
		Timeout:    getEnvDuration("PLACES_TIMEOUT", 15*time.Second),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		LogLevel:   parseLevel(os.Getenv("LOG_LEVEL")),
		S3: S3Config{
			Bucket:   os.Getenv("PLACES_S3_BUCKET"),
			Key:      getEnv("PLACES_S3_KEY", "places-data.json"),
			Region:   getEnv("AWS_REGION", "eu-south-1"),
			Endpoint: os.Getenv("PLACES_S3_ENDPOINT"),
		},
	}
}

// LoadSite reads a TOML site file over the defaults. A missing file yields
// the defaults unchanged.
func LoadSite(path string) (Site, error) {
	site := DefaultSite()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &site); err != nil {
				return Site{}, fmt.Errorf("decode site config %s: %w", path, err)
			}
			if !filepath.IsAbs(site.Root) {
				site.Root = filepath.Join(filepath.Dir(path), site.Root)
			}
		} else if !os.IsNotExist(err) {
			return Site{}, fmt.Errorf("stat site config %s: %w", path, err)
		}
	}
	site.ThirdPartyDomains = pstrings.CookieDomains(site.ThirdPartyDomains)
	if err := site.validate(); err != nil {
		return Site{}, err
	}
	return site, nil
}

func (s Site) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("site name must not be empty")
	}
	if strings.ContainsAny(s.Name, " ;=,") {
		return fmt.Errorf("site name %q is not a valid cookie token", s.Name)
	}
	if s.ConsentTTLDays <= 0 {
		return fmt.Errorf("consent_ttl_days must be positive, got %d", s.ConsentTTLDays)
	}
	if s.MapEmbedURL == "" {
		return fmt.Errorf("map_embed_url must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}
