package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/atelier-commerce/atelier/internal/activity"
	"github.com/atelier-commerce/atelier/internal/session"
)

// ErrReauthRequired is returned when a request cannot be re-authenticated:
// there is no refresh token, or the refresh call itself was rejected. The
// session has been torn down by the time callers see it.
var ErrReauthRequired = errors.New("not authenticated, run 'atelier login' first")

// refreshResponse is what the identity provider returns for a refresh call.
// An absent refreshToken means the old one stays valid.
type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Transport authenticates outbound API requests. Before each request it
// reads credentials straight from the session store (not the manager, so it
// works in code paths where no manager exists) and attaches a bearer header.
// A missing session is not an error; the request goes out unauthenticated
// and the server decides.
//
// On a 401 it performs one refresh-and-retry cycle: exchange the refresh
// token for a new token pair, persist it, replay the original request once.
// The retry is structural, a replayed request that fails again is returned
// to the caller as-is, so no request can loop. Concurrent 401s share one
// in-flight refresh via singleflight instead of each racing the identity
// provider with its own refresh call.
type Transport struct {
	base       http.RoundTripper
	store      session.Store
	refreshURL string
	logger     zerolog.Logger
	sink       activity.Sink

	// onSessionEnd fires after an unrecoverable auth failure has torn down
	// the session; the CLI prints a re-login hint, the console redirects.
	onSessionEnd func()

	group singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithTransportLogger sets the transport logger
func WithTransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithTransportSink sets the audit sink for refresh events
func WithTransportSink(sink activity.Sink) TransportOption {
	return func(t *Transport) {
		t.sink = sink
	}
}

// WithSessionEndHook registers a callback invoked after session teardown
func WithSessionEndHook(fn func()) TransportOption {
	return func(t *Transport) {
		t.onSessionEnd = fn
	}
}

// WithBase sets the underlying round tripper, defaulting to
// http.DefaultTransport
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// NewTransport creates an authenticating round tripper backed by the store
func NewTransport(store session.Store, refreshURL string, opts ...TransportOption) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		store:      store,
		refreshURL: refreshURL,
		logger:     zerolog.Nop(),
		sink:       activity.Nop{},
	}

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := ulid.Make().String()

	authed := req.Clone(req.Context())
	authed.Header.Set("X-Request-ID", requestID)

	if creds, ok := t.store.Load(); ok && creds.AccessToken != "" {
		authed.Header.Set("Authorization", fmt.Sprintf("Bearer %s", creds.AccessToken))
	}

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// A request with a consumed, non-replayable body cannot be retried
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	t.logger.Debug().
		Str("request_id", requestID).
		Str("path", req.URL.Path).
		Msg("Received 401, attempting token refresh")

	// Drop the rejected response before replaying
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	accessToken, err := t.refresh()
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	retry.Header.Set("X-Request-ID", requestID)
	retry.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		retry.Body = body
	}

	return t.base.RoundTrip(retry)
}

// refresh exchanges the stored refresh token for a new token pair and
// persists the result. Concurrent callers share a single exchange.
func (t *Transport) refresh() (string, error) {
	accessToken, err, _ := t.group.Do("refresh", func() (any, error) {
		creds, ok := t.store.Load()
		if !ok || creds.RefreshToken == "" {
			t.endSession("missing refresh token")
			return "", ErrReauthRequired
		}

		result, err := t.exchangeRefreshToken(creds.RefreshToken)
		if err != nil {
			t.endSession(err.Error())
			return "", err
		}

		// Read-merge-write: new tokens in, cached user profile preserved
		creds.AccessToken = result.AccessToken
		if result.RefreshToken != "" {
			creds.RefreshToken = result.RefreshToken
		}
		if err := t.store.Save(*creds); err != nil {
			return "", fmt.Errorf("failed to persist refreshed credentials: %w", err)
		}

		t.sink.Record(activity.Event{Kind: activity.KindRefresh, Email: creds.User.Email})
		return result.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return accessToken.(string), nil
}

// exchangeRefreshToken issues the dedicated, unauthenticated refresh call
func (t *Transport) exchangeRefreshToken(refreshToken string) (*refreshResponse, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.refreshURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: refresh rejected (status %d): %s", ErrReauthRequired, resp.StatusCode, string(body))
	}

	var result refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	if result.AccessToken == "" {
		return nil, fmt.Errorf("refresh response did not include an access token")
	}

	return &result, nil
}

func (t *Transport) endSession(reason string) {
	t.logger.Debug().Str("reason", reason).Msg("Tearing down session")

	if err := t.store.Clear(); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to clear session")
	}

	if t.onSessionEnd != nil {
		t.onSessionEnd()
	}
}
