package sidequest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"sideQuest/api"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Get() (string, bool) {
	return s.token, s.token != ""
}

func newTestClient(t *testing.T, handler http.Handler, token string, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, staticTokens{token: token}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, srv
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("  ", staticTokens{}); err == nil {
		t.Fatal("expected an error for an empty base URL")
	}
}

func TestRequestAttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token-abc")

	if _, err := client.Get(context.Background(), "/api/v1/auth/me", nil, Options{}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "Bearer token-abc" {
		t.Errorf("Authorization = %q, want Bearer token-abc", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected an X-Request-ID header on every request")
	}
}

func TestRequestSkipAuth(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token-abc")

	opts := Options{SkipAuth: true}
	if _, err := client.Get(context.Background(), "/api/v1/health", nil, opts); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestGetResponsesAreCached(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"q1","title":"slay the dragon"}`))
	})
	client, _ := newTestClient(t, handler, "token")

	var first, second api.Quest
	resp1, err := client.Get(context.Background(), "/api/v1/quest/q1", &first, Options{})
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	resp2, err := client.Get(context.Background(), "/api/v1/quest/q1", &second, Options{})
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", hits.Load())
	}
	if resp1.FromCache {
		t.Error("first response should not come from cache")
	}
	if !resp2.FromCache {
		t.Error("second response should come from cache")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached decode differs: %+v vs %+v", first, second)
	}
}

func TestNoCacheBypassesCache(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token")

	opts := Options{NoCache: true}
	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "/api/v1/auth/me", nil, opts); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2", hits.Load())
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token")

	current := time.Now()
	client.cache.now = func() time.Time { return current }

	if _, err := client.Get(context.Background(), "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	current = current.Add(DefaultCacheTTL + time.Second)
	if _, err := client.Get(context.Background(), "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2 after TTL expiry", hits.Load())
	}
}

func TestMutationInvalidatesRelatedEntries(t *testing.T) {
	var questHits, advHits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/quests/adv-1":
			questHits.Add(1)
		case r.URL.Path == "/api/v1/adventurers":
			advHits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token")

	ctx := context.Background()
	if _, err := client.Get(ctx, "/api/v1/quests/adv-1", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}

	// Creating a quest must evict the cached quest list but not the
	// adventurer list.
	if _, err := client.Post(ctx, "/api/v1/quest", map[string]string{"title": "x"}, nil, Options{}); err != nil {
		t.Fatal(err)
	}

	if _, err := client.Get(ctx, "/api/v1/quests/adv-1", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}

	if questHits.Load() != 2 {
		t.Errorf("quest list hits = %d, want 2 (cache evicted by POST)", questHits.Load())
	}
	if advHits.Load() != 1 {
		t.Errorf("adventurer list hits = %d, want 1 (cache untouched)", advHits.Load())
	}
}

func TestClearCache(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token")

	ctx := context.Background()
	if _, err := client.Get(ctx, "/api/v1/quests/adv-1", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if client.cache.len() != 2 {
		t.Fatalf("cache len = %d, want 2", client.cache.len())
	}

	client.ClearCache(regexp.MustCompile(`/quests/`))
	if client.cache.len() != 1 {
		t.Errorf("cache len after pattern clear = %d, want 1", client.cache.len())
	}

	client.ClearCache(nil)
	if client.cache.len() != 0 {
		t.Errorf("cache len after full clear = %d, want 0", client.cache.len())
	}
}

func TestRequestTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token")

	start := time.Now()
	_, err := client.Get(context.Background(), "/api/v1/adventurers", nil, Options{Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if code := api.CodeOf(err); code != api.CodeTimeout {
		t.Errorf("error code = %s, want %s", code, api.CodeTimeout)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("request was not cancelled promptly, took %s", elapsed)
	}
}

func TestErrorBodyMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "explicit message and code",
			status:      http.StatusUnauthorized,
			body:        `{"message":"session expired","code":"UNAUTHORIZED"}`,
			wantCode:    api.CodeUnauthorized,
			wantMessage: "session expired",
		},
		{
			name:        "detail field",
			status:      http.StatusBadRequest,
			body:        `{"detail":"Username already registered"}`,
			wantCode:    "HTTP_ERROR_400",
			wantMessage: "Username already registered",
		},
		{
			name:        "error field",
			status:      http.StatusBadRequest,
			body:        `{"error":"bad payload"}`,
			wantCode:    "HTTP_ERROR_400",
			wantMessage: "bad payload",
		},
		{
			name:        "empty body",
			status:      http.StatusInternalServerError,
			body:        "",
			wantCode:    api.CodeUnknown,
			wantMessage: "unknown error occurred",
		},
		{
			name:        "undecodable body",
			status:      http.StatusBadGateway,
			body:        "<html>bad gateway</html>",
			wantCode:    api.CodeUnknown,
			wantMessage: "unknown error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client, _ := newTestClient(t, handler, "token")

			_, err := client.Get(context.Background(), "/api/v1/auth/me", nil, Options{})
			if err == nil {
				t.Fatal("expected an error")
			}
			var apiErr *api.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error type = %T, want *api.Error", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", apiErr.Code, tt.wantCode)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if apiErr.Status != tt.status {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.status)
			}
		})
	}
}

func TestDecodeShapeMismatch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1"}]`))
	})
	client, _ := newTestClient(t, handler, "token")

	var out api.Adventurer
	_, err := client.Get(context.Background(), "/api/v1/adventurers", &out, Options{})
	if err == nil {
		t.Fatal("expected a decode error for a list decoded into a struct")
	}
	if code := api.CodeOf(err); code != api.CodeClientError {
		t.Errorf("error code = %s, want %s", code, api.CodeClientError)
	}
}

func TestFormBodyEncoding(t *testing.T) {
	var gotContentType, gotUsername string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotUsername = r.PostFormValue("username")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LoginResponse{AccessToken: "tok"})
	})
	client, _ := newTestClient(t, handler, "")

	body := map[string]string{"username": "hilda", "password": "secret"}
	opts := Options{ContentType: ContentTypeForm, SkipAuth: true}
	var out api.LoginResponse
	if _, err := client.Post(context.Background(), "/api/v1/auth/login", body, &out, opts); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q, want form encoding", gotContentType)
	}
	if gotUsername != "hilda" {
		t.Errorf("username field = %q, want hilda", gotUsername)
	}
	if out.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want tok", out.AccessToken)
	}
}

func TestWithHeader(t *testing.T) {
	var gotAgent string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token", WithHeader("User-Agent", "sidequest"))

	if _, err := client.Get(context.Background(), "/api/v1/auth/me", nil, Options{}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAgent != "sidequest" {
		t.Errorf("User-Agent = %q, want sidequest", gotAgent)
	}
}

func TestWithCacheTTL(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token", WithCacheTTL(time.Minute))

	current := time.Now()
	client.cache.now = func() time.Time { return current }

	ctx := context.Background()
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	current = current.Add(30 * time.Second)
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1 inside the configured TTL", hits.Load())
	}

	current = current.Add(time.Minute)
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2 past the configured TTL", hits.Load())
	}
}

func TestWithInvalidationHook(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/adventurers" && r.Method == http.MethodGet {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	hook := func(method, endpoint string) []string {
		return []string{"/adventurers"}
	}
	client, _ := newTestClient(t, handler, "token", WithInvalidationHook(hook))

	ctx := context.Background()
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	// The default hook would leave the adventurer list alone for this path;
	// the custom one evicts it.
	if _, err := client.Post(ctx, "/api/v1/health/reset", nil, nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2 after the hook evicted the entry", hits.Load())
	}
}

func TestWithRateLimitThrottlesBurst(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token",
		WithRateLimit(rate.Every(50*time.Millisecond), 1))

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{NoCache: true}); err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if hits.Load() != 3 {
		t.Fatalf("backend hits = %d, want 3", hits.Load())
	}
	// Burst of one at 50ms per slot: the second and third calls wait.
	if elapsed < 90*time.Millisecond {
		t.Errorf("three calls took %s, expected the limiter to spread them over at least 100ms", elapsed)
	}
}

func TestRateLimitWaitTimesOut(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "token",
		WithRateLimit(rate.Every(time.Hour), 1))

	ctx := context.Background()
	if _, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{NoCache: true}); err != nil {
		t.Fatal(err)
	}

	// The burst is spent and the next slot is an hour out; the request
	// cannot run within its budget.
	_, err := client.Get(ctx, "/api/v1/adventurers", nil, Options{NoCache: true, Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected the limiter wait to fail")
	}
	if code := api.CodeOf(err); code != api.CodeTimeout {
		t.Errorf("error code = %s, want %s", code, api.CodeTimeout)
	}
	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1 (throttled request must not reach the network)", hits.Load())
	}
}

func TestRelatedResources(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     []string
	}{
		{"quest create", "/api/v1/quest", []string{"/quest"}},
		{"quest list", "/api/v1/quests/adv-1", []string{"/quest"}},
		{"completion touches both", "/api/v1/adventurer/a1/quest/q1", []string{"/adventurer", "/quest"}},
		{"user update", "/api/v1/user/u1", []string{"/user"}},
		{"query string ignored", "/api/v1/quest?force=1", []string{"/quest"}},
		{"no resource noun", "/api/v1/health", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := relatedResources(http.MethodPost, tt.endpoint)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("relatedResources(%q) = %v, want %v", tt.endpoint, got, tt.want)
			}
		})
	}
}
