// Package usequity is the US cash-equity broker adapter. Unlike saxoeu's
// OAuth2 session, US-style brokers in this family authenticate with a
// static API key/secret pair sent as headers on every request, so the
// OAuth2-shaped methods on ports.BrokerAdapter are NotSupported here
// rather than merely unimplemented.
package usequity

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fincept/gateway/internal/ratelimit"
)

// Config is the static per-broker configuration for one US-adapter instance.
type Config struct {
	BrokerID     string
	BaseURL      string // e.g. https://api.us-broker.example/v2
	StreamURL    string // e.g. wss://stream.us-broker.example/v2/iex
	APIKeyHeader string // header name carrying the API key, e.g. "APCA-API-KEY-ID"
	APISecretHeader string // header name carrying the API secret
}

func (c Config) withDefaults() Config {
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-API-KEY"
	}
	if c.APISecretHeader == "" {
		c.APISecretHeader = "X-API-SECRET"
	}
	return c
}

// newRestyClient builds a resty client with retry-on-5xx, grounded on
// 0xtitan6-polymarket-mm/internal/exchange/client.go's NewClient. Only GET
// requests are retried; every other method is sent exactly once.
func newRestyClient(cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json")
}

// limiterDefaults mirrors the teacher's rate-limit categories, scaled to
// this broker's published limits.
func limiterDefaults() ratelimit.Config {
	return ratelimit.Config{BurstCapacity: 200, PerSecond: 5}
}
