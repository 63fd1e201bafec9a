package saxoeu

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/domain"
)

// Config is the static per-broker configuration for one European-adapter instance.
type Config struct {
	BrokerID     string
	BaseURL      string // e.g. https://gateway.saxobank.com/sim/openapi
	WebSocketURL string // e.g. wss://sim-streaming.saxobank.com/sim/oapi
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
}

func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
	}
}

// authState holds the mutable session state the teacher's oauth.go keeps
// on SaxoAuthClient: the current token, its source, and the account key
// resolved once authenticated.
type authState struct {
	mu          sync.RWMutex
	token       *oauth2.Token
	tokenSource oauth2.TokenSource
	accountKey  string
}

func (a *Adapter) currentToken(ctx context.Context) (*oauth2.Token, error) {
	a.auth.mu.RLock()
	src := a.auth.tokenSource
	a.auth.mu.RUnlock()
	if src == nil {
		return nil, apperrors.New(apperrors.KindInvalidToken, a.cfg.BrokerID, "adapter is not authenticated")
	}
	tok, err := src.Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidToken, a.cfg.BrokerID, err)
	}
	return tok, nil
}

// Authenticate exchanges stored credentials for a token. The blob is
// expected to already contain an access/refresh token pair (obtained via
// ExchangeCodeForToken and persisted by the credentials port); this
// mirrors the teacher's GetAccessToken/getValidToken flow, generalized to
// the registry-driven Auth Manager.
func (a *Adapter) Authenticate(ctx context.Context, credentials []byte) (domain.AuthResponse, error) {
	blob, err := domain.UnmarshalBlob(credentials)
	if err != nil {
		return domain.AuthResponse{}, apperrors.Wrap(apperrors.KindInvalidInput, a.cfg.BrokerID, err)
	}
	if blob.AccessToken == "" {
		return domain.AuthResponse{Success: false, Message: "no stored access token; OAuth login required"}, nil
	}

	tok := &oauth2.Token{
		AccessToken:  blob.AccessToken,
		RefreshToken: blob.RefreshToken,
		Expiry:       blob.ExpiresAt,
	}
	a.installToken(tok)

	return domain.AuthResponse{Success: true, AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// installToken wraps tok in a ReuseTokenSource so concurrent PlaceOrder
// calls share one refresh, following the teacher's
// createTokenSourceWithEarlyExpiry pattern.
func (a *Adapter) installToken(tok *oauth2.Token) {
	cfg := a.cfg.oauth2Config()
	src := cfg.TokenSource(context.Background(), tok)

	a.auth.mu.Lock()
	a.auth.token = tok
	a.auth.tokenSource = oauth2.ReuseTokenSource(tok, src)
	a.auth.mu.Unlock()
}

// RefreshToken forces a refresh by setting the token's expiry an hour in the
// past and pulling from the underlying source, which triggers oauth2's
// refresh flow.
func (a *Adapter) RefreshToken(ctx context.Context) (domain.AuthResponse, error) {
	a.auth.mu.RLock()
	tok := a.auth.token
	a.auth.mu.RUnlock()
	if tok == nil {
		return domain.AuthResponse{}, apperrors.New(apperrors.KindNoRefreshToken, a.cfg.BrokerID, "no token to refresh")
	}

	expired := &oauth2.Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Hour)}
	cfg := a.cfg.oauth2Config()
	fresh, err := cfg.TokenSource(ctx, expired).Token()
	if err != nil {
		return domain.AuthResponse{}, apperrors.Wrap(apperrors.KindInvalidToken, a.cfg.BrokerID, err)
	}

	a.installToken(fresh)
	a.publishAuthEvent(authEvent{brokerID: a.cfg.BrokerID, authenticated: true, expiry: fresh.Expiry})
	return domain.AuthResponse{Success: true, AccessToken: fresh.AccessToken, ExpiresAt: fresh.Expiry}, nil
}

// GetOAuthURL builds the authorization-code URL. Never fails per §4.B.
func (a *Adapter) GetOAuthURL(clientID string) (string, error) {
	cfg := a.cfg.oauth2Config()
	cfg.ClientID = clientID
	state := fmt.Sprintf("fincept-%d", time.Now().UnixNano())
	return cfg.AuthCodeURL(state), nil
}

// ExchangeCodeForToken trades an authorization code for tokens. Per Open
// Question #2, a response that omits expires_in is a hard failure rather
// than a silently assumed lifetime.
func (a *Adapter) ExchangeCodeForToken(ctx context.Context, code, clientID, clientSecret, redirectURI string) (domain.AuthResponse, error) {
	cfg := a.cfg.oauth2Config()
	cfg.ClientID = clientID
	cfg.ClientSecret = clientSecret
	cfg.RedirectURL = redirectURI

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return domain.AuthResponse{}, apperrors.New(apperrors.KindInvalidCode, a.cfg.BrokerID, err.Error())
	}

	raw, ok := tok.Extra("expires_in").(json.Number)
	if !ok || raw.String() == "" {
		// oauth2 already sets tok.Expiry when expires_in parses; if it
		// didn't, there is nothing to trust.
		if tok.Expiry.IsZero() {
			return domain.AuthResponse{}, apperrors.New(apperrors.KindTokenExpiryUnknown, a.cfg.BrokerID,
				"token response did not include expires_in; refusing to assume a lifetime")
		}
	}

	a.installToken(tok)
	return domain.AuthResponse{Success: true, AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}
