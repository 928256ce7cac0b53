package config_test

import (
	"testing"
	"time"

	"github.com/Amund211/entitysync/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var requiredOutsideDevelopment = []string{"ENTITYSYNC_GATEWAY_URL", "ENTITYSYNC_PUSH_DSN", "SENTRY_DSN"}

var optionalVariables = []string{
	"ENTITYSYNC_CACHE_CAPACITY",
	"ENTITYSYNC_FETCH_TIMEOUT",
	"ENTITYSYNC_FETCH_RATE",
	"ENTITYSYNC_FETCH_BURST",
	"ENTITYSYNC_ALLOWED_ORIGINS",
	"PORT",
	"OTEL_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, variable := range append(requiredOutsideDevelopment, optionalVariables...) {
		t.Setenv(variable, "")
	}
}

func TestGetConfig(t *testing.T) {
	compareConfig := func(gatewayURL, pushDSN, sentryDSN string, env environment, conf config.Config) {
		t.Helper()
		require.Equal(t, gatewayURL, conf.GatewayURL())
		require.Equal(t, pushDSN, conf.PushDSN())
		require.Equal(t, sentryDSN, conf.SentryDSN())
		require.Equal(t, string(env), conf.Environment())
		require.Equal(t, env == production, conf.IsProduction())
		require.Equal(t, env == staging, conf.IsStaging())
		require.Equal(t, env == development, conf.IsDevelopment())
	}

	t.Run("environment is missing", func(t *testing.T) {
		// ENTITYSYNC_ENVIRONMENT is required, so this should fail
		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("development environment uses defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENTITYSYNC_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		compareConfig("", "", "", development, conf)
		require.Equal(t, 600, conf.CacheCapacity())
		require.Equal(t, 10*time.Second, conf.FetchTimeout())
		require.Equal(t, 20, conf.FetchRate())
		require.Equal(t, 40, conf.FetchBurst())
		require.Equal(t, "8123", conf.Port())
		require.Empty(t, conf.AllowedOrigins())
		require.False(t, conf.OTelEnabled())
	})

	t.Run("values are read correctly", func(t *testing.T) {
		clearEnv(t)
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, variable)
		}
		t.Setenv("ENTITYSYNC_CACHE_CAPACITY", "2")
		t.Setenv("ENTITYSYNC_FETCH_TIMEOUT", "1500ms")
		t.Setenv("ENTITYSYNC_FETCH_RATE", "3")
		t.Setenv("ENTITYSYNC_FETCH_BURST", "4")
		t.Setenv("ENTITYSYNC_ALLOWED_ORIGINS", "http://localhost:3000, https://ui.example.com,")
		t.Setenv("PORT", "9000")
		t.Setenv("OTEL_ENABLED", "true")

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("ENTITYSYNC_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				compareConfig("ENTITYSYNC_GATEWAY_URL", "ENTITYSYNC_PUSH_DSN", "SENTRY_DSN", env, conf)
				require.Equal(t, 2, conf.CacheCapacity())
				require.Equal(t, 1500*time.Millisecond, conf.FetchTimeout())
				require.Equal(t, 3, conf.FetchRate())
				require.Equal(t, 4, conf.FetchBurst())
				require.Equal(t, []string{"http://localhost:3000", "https://ui.example.com"}, conf.AllowedOrigins())
				require.Equal(t, "9000", conf.Port())
				require.True(t, conf.OTelEnabled())
				require.NotContains(t, conf.NonSensitiveString(), "ENTITYSYNC_PUSH_DSN")
				require.NotContains(t, conf.NonSensitiveString(), "SENTRY_DSN")
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		clearEnv(t)
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, "placeholder_value")
		}

		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("ENTITYSYNC_ENVIRONMENT", string(env))

				for _, variable := range requiredOutsideDevelopment {
					t.Run(variable, func(t *testing.T) {
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string][]string{
			"ENTITYSYNC_ENVIRONMENT":    {"", "invalid", "my-env"},
			"ENTITYSYNC_CACHE_CAPACITY": {"0", "-1", "many"},
			"ENTITYSYNC_FETCH_TIMEOUT":  {"10", "-1s", "soon"},
			"ENTITYSYNC_FETCH_RATE":     {"0", "x"},
			"ENTITYSYNC_FETCH_BURST":    {"-3"},
			"OTEL_ENABLED":              {"maybe"},
		}
		for variable, values := range cases {
			for _, value := range values {
				t.Run(variable+"="+value, func(t *testing.T) {
					clearEnv(t)
					t.Setenv("ENTITYSYNC_ENVIRONMENT", "development")
					t.Setenv(variable, value)

					_, err := config.ConfigFromEnv()
					require.ErrorIs(t, err, config.ErrInvalidValue)
				})
			}
		}
	})
}
