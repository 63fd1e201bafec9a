// Package inequity is the Indian cash-equity broker adapter. Every
// request is signed with an HMAC-SHA256 header in the style of
// 0xtitan6-polymarket-mm's L2 auth scheme, and REST calls flow through
// hashicorp/go-retryablehttp rather than a bespoke retry loop.
package inequity

import (
	"log"
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fincept/gateway/internal/ratelimit"
)

// Config is the static per-broker configuration for one Indian-adapter
// instance.
type Config struct {
	BrokerID  string
	BaseURL   string // e.g. https://api.in-broker.example
	WSURL     string // e.g. wss://ws.in-broker.example/feed
	APIKey    string
	APISecret string
}

func limiterDefaults() ratelimit.Config {
	return ratelimit.Config{BurstCapacity: 10, PerSecond: 3}
}

// newRetryableClient builds a go-retryablehttp client with bounded
// retries and a discarded internal logger (the adapter logs through
// ports.Logger instead), grounded on the teacher pack's
// NimbleMarkets-dbn-go download clients.
func newRetryableClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = 1200 * time.Millisecond
	c.Logger = log.New(io.Discard, "", log.LstdFlags)
	return c
}
