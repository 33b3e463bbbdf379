package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atelier-commerce/atelier/internal/session"
)

func newTestStore(t *testing.T) session.Store {
	t.Helper()
	return session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
}

func seedStore(t *testing.T, store session.Store, accessToken, refreshToken string) {
	t.Helper()

	err := store.Save(session.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         session.User{ID: "user-1", Email: "ana@atelier.shop", Name: "Ana"},
	})
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func TestAttachesBearerHeader(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "current-token", "refresh-token")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	resp, err := client.Get(srv.URL + "/api/products")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer current-token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected a request id header")
	}
}

func TestMissingSessionIsSwallowed(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Empty store: the request still goes out, just unauthenticated
	client := &http.Client{Transport: NewTransport(newTestStore(t), srv.URL+"/api/auth/refresh")}

	resp, err := client.Get(srv.URL + "/api/products")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRefreshAndRetryOn401(t *testing.T) {
	var refreshCalls, resourceCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)

		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("refresh call must be unauthenticated, got %q", auth)
		}

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode refresh body: %v", err)
		}
		if body.RefreshToken != "old-refresh" {
			t.Errorf("expected refresh token old-refresh, got %q", body.RefreshToken)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "new-access",
			"refreshToken": "new-refresh",
		})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&resourceCalls, 1)

		if bearerOf(r) != "new-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "old-refresh")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	resp, err := client.Get(srv.URL + "/api/orders")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected retried request to succeed, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("expected exactly one refresh call, got %d", n)
	}
	if n := atomic.LoadInt32(&resourceCalls); n != 2 {
		t.Errorf("expected original + one retry, got %d calls", n)
	}

	// New tokens persisted, cached profile preserved
	creds, ok := store.Load()
	if !ok {
		t.Fatal("expected credentials in store after refresh")
	}
	if creds.AccessToken != "new-access" {
		t.Errorf("expected rotated access token, got %q", creds.AccessToken)
	}
	if creds.RefreshToken != "new-refresh" {
		t.Errorf("expected rotated refresh token, got %q", creds.RefreshToken)
	}
	if creds.User.Email != "ana@atelier.shop" {
		t.Errorf("expected user profile preserved, got %+v", creds.User)
	}
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	const parallel = 4

	var refreshCalls, rejected int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)

		// Hold the exchange open until every request has taken its 401, so
		// all of them are waiting on this one refresh
		for atomic.LoadInt32(&rejected) < parallel {
			time.Sleep(5 * time.Millisecond)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "new-access",
			"refreshToken": "new-refresh",
		})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearerOf(r) != "new-access" {
			atomic.AddInt32(&rejected, 1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "old-refresh")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	var wg sync.WaitGroup
	codes := make([]int, parallel)
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			resp, err := client.Get(srv.URL + "/api/orders")
			if err != nil {
				t.Errorf("request %d failed: %v", i, err)
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("expected all requests to share one refresh call, got %d", n)
	}
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: expected 200 after shared refresh, got %d", i, code)
		}
	}
}

func TestRefreshWithoutRotatedRefreshTokenKeepsOld(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		// No refreshToken in the response: the old one stays valid
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "new-access"})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if bearerOf(r) != "new-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "old-refresh")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	resp, err := client.Get(srv.URL + "/api/orders")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	creds, ok := store.Load()
	if !ok {
		t.Fatal("expected credentials in store")
	}
	if creds.RefreshToken != "old-refresh" {
		t.Errorf("expected old refresh token retained, got %q", creds.RefreshToken)
	}
}

func TestRetriedRequestFailingAgainIsReturned(t *testing.T) {
	var resourceCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "still-rejected"})
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&resourceCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "old-refresh")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	resp, err := client.Get(srv.URL + "/api/orders")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	// No loop: the second 401 is handed straight back
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 surfaced, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&resourceCalls); n != 2 {
		t.Errorf("expected exactly two resource calls, got %d", n)
	}
}

func TestRefreshFailureTearsDownSession(t *testing.T) {
	var sessionEnded int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "refresh token revoked"}`))
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "revoked-refresh")

	transport := NewTransport(store, srv.URL+"/api/auth/refresh",
		WithSessionEndHook(func() { atomic.AddInt32(&sessionEnded, 1) }),
	)
	client := &http.Client{Transport: transport}

	_, err := client.Get(srv.URL + "/api/orders")
	if err == nil {
		t.Fatal("expected the refresh error to propagate")
	}
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("expected ErrReauthRequired in chain, got %v", err)
	}

	if _, ok := store.Load(); ok {
		t.Fatal("expected storage cleared after refresh failure")
	}
	if n := atomic.LoadInt32(&sessionEnded); n != 1 {
		t.Errorf("expected session end hook to fire once, got %d", n)
	}
}

func TestMissingRefreshTokenFailsPermanently(t *testing.T) {
	var refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "") // no refresh token

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	_, err := client.Get(srv.URL + "/api/orders")
	if err == nil {
		t.Fatal("expected error for session without refresh token")
	}
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("expected ErrReauthRequired, got %v", err)
	}

	if n := atomic.LoadInt32(&refreshCalls); n != 0 {
		t.Errorf("expected no refresh call without refresh token, got %d", n)
	}
	if _, ok := store.Load(); ok {
		t.Fatal("expected storage cleared")
	}
}

func TestPostBodyIsReplayedOnRetry(t *testing.T) {
	var bodies []string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "new-access"})
	})
	mux.HandleFunc("/api/products", func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		bodies = append(bodies, string(body))

		if bearerOf(r) != "new-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newTestStore(t)
	seedStore(t, store, "stale-access", "old-refresh")

	client := &http.Client{Transport: NewTransport(store, srv.URL+"/api/auth/refresh")}

	resp, err := client.Post(srv.URL+"/api/products", "application/json", strings.NewReader(`{"name":"Vase"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after retry, got %d", resp.StatusCode)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected two deliveries, got %d", len(bodies))
	}
	if bodies[0] != bodies[1] {
		t.Errorf("expected identical bodies, got %q and %q", bodies[0], bodies[1])
	}
}
