package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchFollowers_Paginates(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}

		page := r.URL.Query().Get("page")
		resp := userPage{HasMore: page == "1"}
		switch page {
		case "1":
			resp.Users = []Profile{{Username: "alice", ID: "1"}, {Username: "bob", ID: "2"}}
		case "2":
			resp.Users = []Profile{{Username: "carol", ID: "3"}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	profiles, err := c.FetchFollowers(context.Background(), "seed", 5)
	if err != nil {
		t.Fatalf("FetchFollowers: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	if profiles[2].Username != "carol" {
		t.Errorf("profiles out of order: %+v", profiles)
	}

	// has_more=false on page 2 stops pagination short of the page budget
	if len(paths) != 2 {
		t.Errorf("requests = %v", paths)
	}
	if paths[0] != "/users/seed/followers?page=1" {
		t.Errorf("first request = %q", paths[0])
	}
}

func TestFetchFollowings_PageBudget(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(userPage{
			Users:   []Profile{{Username: fmt.Sprintf("u%d", requests), ID: "1"}},
			HasMore: true,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	profiles, err := c.FetchFollowings(context.Background(), "alice", 2, 0)
	if err != nil {
		t.Fatalf("FetchFollowings: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want the page budget to cap fetching", requests)
	}
	if len(profiles) != 2 {
		t.Errorf("profiles = %d", len(profiles))
	}
}

func TestFetchPage_RetriesRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(userPage{Users: []Profile{{Username: "alice", ID: "1"}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	profiles, err := c.FetchFollowers(context.Background(), "seed", 1)
	if err != nil {
		t.Fatalf("FetchFollowers: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want retry after 429", attempts)
	}
	if len(profiles) != 1 {
		t.Errorf("profiles = %d", len(profiles))
	}
}

func TestFetchPage_ExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	_, err := c.FetchFollowers(context.Background(), "seed", 1)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if attempts != maxAttemptsPerPage {
		t.Errorf("attempts = %d, want %d", attempts, maxAttemptsPerPage)
	}
}

func TestFetchPage_ErrorStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := NewHTTPClient(srv.URL, "token", nil, testLogger())
		_, err := c.FetchFollowers(context.Background(), "seed", 1)
		if !errors.Is(err, ErrTransient) {
			t.Errorf("status %d: expected ErrTransient, got %v", status, err)
		}
		srv.Close()
	}
}

func TestBlockAndUnblock(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	if err := c.Block(context.Background(), "spambot"); err != nil {
		t.Errorf("Block: %v", err)
	}
	if err := c.Unblock(context.Background(), "spambot"); err != nil {
		t.Errorf("Unblock: %v", err)
	}

	want := []string{"/users/spambot/block", "/users/spambot/unblock"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestBlock_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "token", nil, testLogger())
	if err := c.Block(context.Background(), "spambot"); !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}
