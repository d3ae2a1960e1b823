// Package twitter is the external client capability the crawl pipeline
// drives: fetch who follows an account and who it follows, and manage
// block state. The orchestrator only sees the Client interface; the HTTP
// implementation lives in this package so callers construct one handle
// and pass it around.
package twitter

import (
	"context"
	"errors"
	"time"
)

// ErrTransient marks a fetch failure the crawler may recover from by
// skipping the current row. It is counted against the crawl error budget.
var ErrTransient = errors.New("transient fetch failure")

// Profile is one account as the source reports it. CreatedAt stays a raw
// string here; parsing it is the consumer's concern and may fail per row.
type Profile struct {
	Username           string `json:"username"`
	Name               string `json:"name"`
	ID                 string `json:"id"`
	CreatedAt          string `json:"created_at"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	FollowersCount     int    `json:"followers_count"`
	FriendsCount       int    `json:"friends_count"`
	StatusesCount      int    `json:"statuses_count"`
	FavouritesCount    int    `json:"favourites_count"`
	SubscriptionsCount int    `json:"subscriptions_count"`
	Protected          bool   `json:"protected"`
	Verified           bool   `json:"verified"`
}

// Client exposes the fetch operations the crawler needs. Pagination
// semantics (accounts per page, page limits) belong to the implementation.
type Client interface {
	// FetchFollowers returns up to pages pages of accounts following
	// username.
	FetchFollowers(ctx context.Context, username string, pages int) ([]Profile, error)

	// FetchFollowings returns up to pages pages of accounts username
	// follows, pausing wait between page requests.
	FetchFollowings(ctx context.Context, username string, pages int, wait time.Duration) ([]Profile, error)

	// Block and Unblock manage the authenticated account's block list.
	Block(ctx context.Context, username string) error
	Unblock(ctx context.Context, username string) error
}
