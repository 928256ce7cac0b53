package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultCacheCapacity = 600
	defaultFetchTimeout  = 10 * time.Second
	defaultFetchRate     = 20
	defaultFetchBurst    = 40
	defaultPort          = "8123"
)

type Config struct {
	gatewayURL     string
	pushDSN        string
	sentryDSN      string
	port           string
	cacheCapacity  int
	fetchTimeout   time.Duration
	fetchRate      int
	fetchBurst     int
	allowedOrigins []string
	otelEnabled    bool
	env            environment
}

func (c *Config) GatewayURL() string {
	return c.gatewayURL
}

func (c *Config) PushDSN() string {
	return c.pushDSN
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() string {
	return c.port
}

// Maximum number of cached entities per model
func (c *Config) CacheCapacity() int {
	return c.cacheCapacity
}

func (c *Config) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

// Sustained fetches per second allowed per model
func (c *Config) FetchRate() int {
	return c.fetchRate
}

func (c *Config) FetchBurst() int {
	return c.fetchBurst
}

// Browser origins allowed to call the HTTP ports. Empty disables CORS.
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, gatewayURL: %s, cacheCapacity: %d, fetchTimeout: %s, fetchRate: %d, fetchBurst: %d, allowedOrigins: %v, port: %s, otelEnabled: %t, ...}",
		string(c.env), c.gatewayURL, c.cacheCapacity, c.fetchTimeout, c.fetchRate, c.fetchBurst, c.allowedOrigins, c.port, c.otelEnabled,
	)
}

func positiveIntFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("ENTITYSYNC_ENVIRONMENT")
	if !ok {
		return missingKey("ENTITYSYNC_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: ENTITYSYNC_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	gatewayURL := os.Getenv("ENTITYSYNC_GATEWAY_URL")
	pushDSN := os.Getenv("ENTITYSYNC_PUSH_DSN")
	sentryDSN := os.Getenv("SENTRY_DSN")

	if env == production || env == staging {
		if gatewayURL == "" {
			return missingKey("ENTITYSYNC_GATEWAY_URL")
		}
		if pushDSN == "" {
			return missingKey("ENTITYSYNC_PUSH_DSN")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	cacheCapacity, err := positiveIntFromEnv("ENTITYSYNC_CACHE_CAPACITY", defaultCacheCapacity)
	if err != nil {
		return Config{}, err
	}

	fetchRate, err := positiveIntFromEnv("ENTITYSYNC_FETCH_RATE", defaultFetchRate)
	if err != nil {
		return Config{}, err
	}

	fetchBurst, err := positiveIntFromEnv("ENTITYSYNC_FETCH_BURST", defaultFetchBurst)
	if err != nil {
		return Config{}, err
	}

	fetchTimeout := defaultFetchTimeout
	if raw := os.Getenv("ENTITYSYNC_FETCH_TIMEOUT"); raw != "" {
		fetchTimeout, err = time.ParseDuration(raw)
		if err != nil || fetchTimeout <= 0 {
			return Config{}, fmt.Errorf("%w: ENTITYSYNC_FETCH_TIMEOUT (%s)", ErrInvalidValue, raw)
		}
	}

	allowedOrigins := []string{}
	for origin := range strings.SplitSeq(os.Getenv("ENTITYSYNC_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	otelEnabled := false
	if raw := os.Getenv("OTEL_ENABLED"); raw != "" {
		otelEnabled, err = strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: OTEL_ENABLED (%s)", ErrInvalidValue, raw)
		}
	}

	return Config{
		gatewayURL:     gatewayURL,
		pushDSN:        pushDSN,
		sentryDSN:      sentryDSN,
		port:           port,
		cacheCapacity:  cacheCapacity,
		fetchTimeout:   fetchTimeout,
		fetchRate:      fetchRate,
		fetchBurst:     fetchBurst,
		allowedOrigins: allowedOrigins,
		otelEnabled:    otelEnabled,
		env:            env,
	}, nil
}
