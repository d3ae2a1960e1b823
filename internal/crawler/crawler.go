// Package crawler drives the two crawl passes: bootstrapping the dataset
// from a seed account's followers, and expanding every stored row with
// the accounts it follows. Fetches go through the external client one row
// at a time under an explicit inter-call delay and a cumulative error
// budget; a pass that stops early still persists consistent partial
// state.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"follower-audit/internal/metrics"
	"follower-audit/internal/models"
	"follower-audit/internal/store"
	"follower-audit/internal/twitter"
)

// DefaultErrorBudget is how many transient fetch failures an expansion
// pass tolerates before stopping and persisting what it has.
const DefaultErrorBudget = 5

// followingsPageWait is the pause between pages within one followings
// fetch, passed through to the client.
const followingsPageWait = 2 * time.Second

// row outcomes for logs and metrics
const (
	outcomeFetched   = "fetched"
	outcomeProtected = "protected_skip"
	outcomeError     = "error_skip"
)

type Crawler struct {
	log         *slog.Logger
	store       store.Store
	client      twitter.Client
	metrics     *metrics.Collector
	errorBudget int
}

func New(log *slog.Logger, st store.Store, client twitter.Client, collector *metrics.Collector, errorBudget int) *Crawler {
	if errorBudget < 1 {
		errorBudget = DefaultErrorBudget
	}
	return &Crawler{
		log:         log,
		store:       st,
		client:      client,
		metrics:     collector,
		errorBudget: errorBudget,
	}
}

// Bootstrap fetches the accounts following seed and replaces the store
// contents with them, stamping a fresh reference timestamp. Returns the
// number of rows written.
func (c *Crawler) Bootstrap(ctx context.Context, seed string, pages int) (int, error) {
	runID := uuid.NewString()
	log := c.log.With("run_id", runID, "seed", seed)
	log.Info("bootstrap_started", "pages", pages)

	profiles, err := c.client.FetchFollowers(ctx, seed, pages)
	if err != nil {
		return 0, fmt.Errorf("fetch followers of %s: %w", seed, err)
	}
	c.metrics.AccountsFetched(len(profiles))

	seen := make(map[string]bool, len(profiles))
	accounts := make([]models.Account, 0, len(profiles))
	for _, p := range profiles {
		acct, err := accountFromProfile(p)
		if err != nil {
			// one malformed profile never aborts the pass
			log.Warn("profile_dropped", "username", p.Username, "error", err)
			continue
		}
		if seen[acct.Username] {
			continue
		}
		seen[acct.Username] = true
		accounts = append(accounts, acct)
	}

	if err := c.store.Save(ctx, accounts); err != nil {
		return 0, fmt.Errorf("save bootstrap rows: %w", err)
	}
	if err := c.store.StampReferenceTime(ctx, time.Now()); err != nil {
		return 0, fmt.Errorf("stamp reference time: %w", err)
	}

	log.Info("bootstrap_completed", "accounts", len(accounts))
	return len(accounts), nil
}

// ExpandResult summarizes one expansion pass.
type ExpandResult struct {
	Processed       int  `json:"processed"`
	Fetched         int  `json:"fetched"`
	ProtectedSkips  int  `json:"protected_skips"`
	Errors          int  `json:"errors"`
	AccountsFetched int  `json:"accounts_fetched"`
	Stopped         bool `json:"stopped_early"`
}

// Expand fetches the followings of every non-protected stored row,
// bounded to pages pages per row, waiting delay between external calls.
// Transient fetch failures skip the row; once the error budget is spent
// the loop stops immediately. Either way the full store and the
// accumulated followings snapshots are persisted before returning.
func (c *Crawler) Expand(ctx context.Context, pages int, delay time.Duration) (*ExpandResult, error) {
	runID := uuid.NewString()
	log := c.log.With("run_id", runID)

	accounts, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("expand_started", "rows", len(accounts), "pages", pages, "delay", delay.String())

	// burst 1 makes the limiter a plain inter-call delay: the first fetch
	// goes out immediately, every later one waits out the interval.
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	result := &ExpandResult{}
	var snapshots []models.FollowingSnapshot
	errorCount := 0

	for i := range accounts {
		row := &accounts[i]

		if row.Protected {
			// followings of protected accounts are inaccessible; no
			// external call happened, so no delay either
			result.ProtectedSkips++
			c.metrics.CrawlRow(outcomeProtected)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		result.Processed++

		profiles, err := c.client.FetchFollowings(ctx, row.Username, pages, followingsPageWait)
		if err != nil {
			errorCount++
			result.Errors++
			c.metrics.CrawlError()
			c.metrics.CrawlRow(outcomeError)

			if errorCount >= c.errorBudget {
				log.Error("error_budget_exhausted", "username", row.Username, "errors", errorCount, "error", err)
				result.Stopped = true
				break
			}
			log.Warn("row_fetch_failed", "username", row.Username, "errors", errorCount, "error", err)
			continue
		}

		row.Followings = followingUsernames(profiles)
		result.Fetched++
		result.AccountsFetched += len(profiles)
		c.metrics.AccountsFetched(len(profiles))
		c.metrics.CrawlRow(outcomeFetched)

		for _, p := range profiles {
			snap, err := snapshotFromProfile(p, row.Username)
			if err != nil {
				log.Warn("snapshot_dropped", "username", p.Username, "followed_by", row.Username, "error", err)
				continue
			}
			snapshots = append(snapshots, snap)
		}
	}

	// persist whatever we have, even after a premature stop, so a partial
	// crawl is still a consistent queryable dataset
	if err := c.store.Save(ctx, accounts); err != nil {
		return nil, fmt.Errorf("save expanded rows: %w", err)
	}
	if err := c.store.SaveFollowings(ctx, snapshots); err != nil {
		return nil, fmt.Errorf("save following snapshots: %w", err)
	}

	log.Info("expand_completed",
		"processed", result.Processed,
		"fetched", result.Fetched,
		"protected_skips", result.ProtectedSkips,
		"errors", result.Errors,
		"stopped_early", result.Stopped,
	)
	return result, nil
}

// followingUsernames reduces fetched profiles to a set of username
// references, preserving first-seen order.
func followingUsernames(profiles []twitter.Profile) []string {
	seen := make(map[string]bool, len(profiles))
	usernames := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p.Username == "" || seen[p.Username] {
			continue
		}
		seen[p.Username] = true
		usernames = append(usernames, p.Username)
	}
	return usernames
}

var createdAtLayouts = []string{
	time.RubyDate,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func accountFromProfile(p twitter.Profile) (models.Account, error) {
	if p.Username == "" {
		return models.Account{}, fmt.Errorf("profile without username")
	}

	createdAt, err := parseCreatedAt(p.CreatedAt)
	if err != nil {
		return models.Account{}, err
	}

	return models.Account{
		Username:           p.Username,
		Name:               p.Name,
		ID:                 p.ID,
		CreatedAt:          createdAt,
		Description:        p.Description,
		Location:           p.Location,
		FollowersCount:     p.FollowersCount,
		FriendsCount:       p.FriendsCount,
		StatusesCount:      p.StatusesCount,
		FavouritesCount:    p.FavouritesCount,
		SubscriptionsCount: p.SubscriptionsCount,
		Protected:          p.Protected,
		Verified:           p.Verified,
	}, nil
}

func snapshotFromProfile(p twitter.Profile, followedBy string) (models.FollowingSnapshot, error) {
	if p.Username == "" {
		return models.FollowingSnapshot{}, fmt.Errorf("profile without username")
	}
	return models.FollowingSnapshot{
		Username:           p.Username,
		ID:                 p.ID,
		Description:        p.Description,
		Location:           p.Location,
		StatusesCount:      p.StatusesCount,
		FollowersCount:     p.FollowersCount,
		FriendsCount:       p.FriendsCount,
		Protected:          p.Protected,
		Verified:           p.Verified,
		FollowedByUsername: followedBy,
	}, nil
}

func parseCreatedAt(raw string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", raw)
}
