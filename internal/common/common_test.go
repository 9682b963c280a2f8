package common

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CollectsFailures(t *testing.T) {
	v := NewValidator()
	v.Field("name", "  ", Required).
		Field("currency", "usd", CurrencyCode).
		Field("limit", 500.0, InRange(1, 200)).
		Field("order", "YMD", OneOf("MDY", "DMY")).
		Field("search", "abcdef", MaxLengthRule(3)).
		Field("id", "not-a-uuid", UUID).
		Field("pattern", "(", Regexp).
		Field("tags", []string{}, NonEmptyList).
		Field("workers", 0, Positive)

	require.True(t, v.HasErrors())
	err := ValidateAndReturnError(v)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, CodeValidation, ErrorCode(err))
	for _, field := range []string{"name", "currency", "limit", "order", "search", "id", "pattern", "tags", "workers"} {
		assert.Contains(t, err.Error(), "'"+field+"'")
	}
}

func TestValidator_Passes(t *testing.T) {
	v := NewValidator()
	v.Field("currency", "NPR", Required, CurrencyCode).
		Field("limit", 50.0, InRange(1, 200)).
		Field("search", "mart", MaxLengthRule(100)).
		Field("tags", []string{"total"}, NonEmptyList).
		Field("workers", 4, Positive)
	assert.False(t, v.HasErrors())
	assert.NoError(t, ValidateAndReturnError(v))
	assert.Equal(t, "", v.ErrorMessage())
}

func TestAppError(t *testing.T) {
	err := InvalidInput("bad file")
	assert.Equal(t, "INVALID_INPUT: bad file: invalid input", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	wrapped := errors.Join(errors.New("outer"), ConfigError("broken rules"))
	assert.Equal(t, CodeConfig, ErrorCode(wrapped))
	assert.ErrorIs(t, wrapped, ErrConfiguration)
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))
	_, ok := ContentHashFromContext(WithContentHash(ctx, ""))
	assert.False(t, ok)

	ctx = WithContentHash(WithRequestID(ctx, "req-1"), "abc123")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	h, ok := ContentHashFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc123", h)
	assert.NotNil(t, LoggerWithRequest(ctx, nil))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/receipts")
	t.Setenv("DATE_ORDER", "dmy")
	t.Setenv("REVIEW_THRESHOLD", "0.7")
	t.Setenv("INGEST_WORKERS", "not-a-number")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "DMY", cfg.Extraction.DateOrder)
	assert.Equal(t, 0.7, cfg.Extraction.ReviewThreshold)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"driver":    func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":       func(c *Config) { c.Database.DSN = "" },
		"order":     func(c *Config) { c.Extraction.DateOrder = "YMD" },
		"threshold": func(c *Config) { c.Extraction.ReviewThreshold = 1.5 },
		"workers":   func(c *Config) { c.Ingest.Workers = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := LoadConfig()
			c.Database.Driver = "sqlite"
			c.Database.DSN = ":memory:"
			c.Extraction.DateOrder = "MDY"
			require.NoError(t, c.Validate())
			mutate(c)
			err := c.Validate()
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Equal(t, CodeConfig, ErrorCode(err))
		})
	}
}
