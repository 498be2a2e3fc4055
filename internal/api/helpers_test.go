// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/preferences"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

// fakeEngine records calls and answers with a canned result or error.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []string
	result *models.Recommendation
	err    error
	status models.UsageStatus
}

func (f *fakeEngine) GetRecommendations(_ context.Context, userID string, _ models.FilterContext, candidates []models.RestaurantRecord) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.Recommendation{
		UserID:          userID,
		Status:          models.StatusRuleBased,
		Strategy:        models.StrategyExploration,
		TotalCandidates: len(candidates),
		Candidates:      []models.ScoredCandidate{},
	}, nil
}

func (f *fakeEngine) Status() models.UsageStatus {
	return f.status
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testServer struct {
	engine   *fakeEngine
	store    *preferences.MemoryStore
	handler  http.Handler
	auth     *Authenticator
	register func(name string, check ReadinessCheck)
}

type serverOption func(*serverConfig)

type serverConfig struct {
	auth      bool
	rateLimit int
}

func withAuth() serverOption            { return func(c *serverConfig) { c.auth = true } }
func withRateLimit(n int) serverOption { return func(c *serverConfig) { c.rateLimit = n } }

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := serverConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	engine := &fakeEngine{}
	store := preferences.NewMemoryStore(nil, zerolog.Nop())
	h := NewHandler(engine, store, "test")

	mw := DefaultChiMiddlewareConfig()
	mw.RecommendationsPerWindow = cfg.rateLimit
	mw.CORSAllowedOrigins = []string{"https://app.example"}

	var auth *Authenticator
	if cfg.auth {
		var err error
		auth, err = NewAuthenticator(testSecret, "mealwise-test")
		if err != nil {
			t.Fatalf("NewAuthenticator: %v", err)
		}
	}

	return &testServer{
		engine:   engine,
		store:    store,
		handler:  NewRouter(h, mw, auth).SetupChi(),
		auth:     auth,
		register: h.AddReadinessCheck,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:4711"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bearer(t *testing.T, subject string) http.Header {
	t.Helper()
	token, err := s.auth.GenerateToken(subject, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

// envelope decodes a response, failing the test on malformed JSON.
func envelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) models.APIResponse {
	t.Helper()
	var raw struct {
		Status   string           `json:"status"`
		Data     json.RawMessage  `json:"data"`
		Metadata models.Metadata  `json:"metadata"`
		Error    *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	if data != nil && len(raw.Data) > 0 && !bytes.Equal(raw.Data, []byte("null")) {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return models.APIResponse{Status: raw.Status, Metadata: raw.Metadata, Error: raw.Error}
}

func profileJSON(userID string) string {
	return `{"user_id":"` + userID + `","strictness":4,` +
		`"restrictions":[{"restriction":"vegetarian","strictness":5}],` +
		`"allergies":[{"allergen":"peanuts","severity":"severe"}],` +
		`"cuisine_affinity":{"thai":0.8},"price_preference":2}`
}
