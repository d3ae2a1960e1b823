package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"follower-audit/internal/config"
	"follower-audit/internal/crawler"
	"follower-audit/internal/flags"
	"follower-audit/internal/graph"
	"follower-audit/internal/models"
	"follower-audit/internal/store"
	"follower-audit/internal/twitter"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClient struct {
	followers  []twitter.Profile
	blocked    []string
	unblocked  []string
	blockErr   error
	unblockErr error
}

func (f *fakeClient) FetchFollowers(_ context.Context, _ string, _ int) ([]twitter.Profile, error) {
	return f.followers, nil
}

func (f *fakeClient) FetchFollowings(_ context.Context, _ string, _ int, _ time.Duration) ([]twitter.Profile, error) {
	return nil, nil
}

func (f *fakeClient) Block(_ context.Context, username string) error {
	if f.blockErr != nil {
		return f.blockErr
	}
	f.blocked = append(f.blocked, username)
	return nil
}

func (f *fakeClient) Unblock(_ context.Context, username string) error {
	if f.unblockErr != nil {
		return f.unblockErr
	}
	f.unblocked = append(f.unblocked, username)
	return nil
}

func newTestServer(t *testing.T, client *fakeClient) (*Server, store.Store) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewCSV(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}

	cfg := config.Config{
		CORSOrigins: []string{"*"},
		Rules: config.RuleConfig{
			LowFollowerThresh:        3,
			FollowersPerDayThresh:    10,
			AlphanumericCheckEnabled: true,
		},
	}

	cr := crawler.New(log, st, client, nil, 0)
	engine := flags.NewEngine(cfg.Rules, flags.NewBigramDetector(), log)
	builder := graph.NewBuilder(log)

	return NewServer(log, cfg, st, cr, engine, builder, client, nil), st
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func seed(t *testing.T, st store.Store, accounts []models.Account) {
	t.Helper()
	if err := st.Save(context.Background(), accounts); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.StampReferenceTime(context.Background(), time.Now()); err != nil {
		t.Fatalf("stamp: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{})

	w := doRequest(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestListAccounts_NoDataset(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{})

	w := doRequest(t, s, http.MethodGet, "/api/v1/accounts", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]any)
	if !ok || errObj["code"] != "no_dataset" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestListAccounts(t *testing.T) {
	s, st := newTestServer(t, &fakeClient{})
	seed(t, st, []models.Account{
		{Username: "alice", FriendsCount: 50},
		{Username: "bob", FriendsCount: 20},
	})

	w := doRequest(t, s, http.MethodGet, "/api/v1/accounts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["count"] != float64(2) {
		t.Errorf("count = %v", body["count"])
	}
}

func TestGetGraph(t *testing.T) {
	s, st := newTestServer(t, &fakeClient{})
	seed(t, st, []models.Account{
		{Username: "alice", Followings: []string{"x", "y", "z"}},
		{Username: "bob", Followings: []string{"y", "z", "w"}},
	})

	w := doRequest(t, s, http.MethodGet, "/api/v1/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var g models.SimilarityGraph
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
}

func TestBootstrap(t *testing.T) {
	client := &fakeClient{followers: []twitter.Profile{
		{Username: "alice", ID: "1", CreatedAt: "2021-06-01T10:00:00Z"},
		{Username: "bob", ID: "2", CreatedAt: "2021-06-01T10:00:00Z"},
	}}
	s, st := newTestServer(t, client)

	w := doRequest(t, s, http.MethodPost, "/api/v1/crawl/bootstrap", map[string]any{"username": "seed"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["msg"] != "Done" || body["accounts"] != float64(2) {
		t.Errorf("unexpected body: %v", body)
	}

	if _, err := st.Load(context.Background()); err != nil {
		t.Errorf("dataset not written: %v", err)
	}
}

func TestBootstrap_MissingUsername(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{})

	w := doRequest(t, s, http.MethodPost, "/api/v1/crawl/bootstrap", map[string]any{"pages": 2})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRunFlags(t *testing.T) {
	s, st := newTestServer(t, &fakeClient{})
	now := time.Now()
	seed(t, st, []models.Account{
		{Username: "abc123456789", FriendsCount: 1, CreatedAt: now.Add(-36 * time.Hour)},
		{Username: "johnsmith", FriendsCount: 50, FollowersCount: 100, CreatedAt: now.Add(-1000 * 24 * time.Hour)},
		{Username: "verifieduser", Verified: true, CreatedAt: now.Add(-24 * time.Hour)},
	})

	w := doRequest(t, s, http.MethodPost, "/api/v1/flags/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["msg"] != "Flagged 1 users" {
		t.Errorf("msg = %v", body["msg"])
	}

	loaded, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, acct := range loaded {
		if acct.Flags == "" {
			t.Errorf("%s missing flags value", acct.Username)
		}
	}
}

func TestBlockAccount(t *testing.T) {
	client := &fakeClient{}
	s, _ := newTestServer(t, client)

	w := doRequest(t, s, http.MethodPost, "/api/v1/accounts/spambot/block", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(client.blocked) != 1 || client.blocked[0] != "spambot" {
		t.Errorf("blocked = %v", client.blocked)
	}
}

func TestBlockAccount_UpstreamError(t *testing.T) {
	client := &fakeClient{blockErr: errors.New("upstream down")}
	s, _ := newTestServer(t, client)

	w := doRequest(t, s, http.MethodPost, "/api/v1/accounts/spambot/block", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestForceUnfollow(t *testing.T) {
	client := &fakeClient{}
	s, _ := newTestServer(t, client)

	w := doRequest(t, s, http.MethodPost, "/api/v1/accounts/spambot/force_unfollow", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(client.blocked) != 1 || len(client.unblocked) != 1 {
		t.Errorf("blocked = %v, unblocked = %v", client.blocked, client.unblocked)
	}
}

func TestCORSHeaders(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
