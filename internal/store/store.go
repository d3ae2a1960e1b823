// Package store persists the account dataset. Two implementations share
// one contract: a delimiter-separated flat-file store (the default) and a
// Postgres store for deployments that already run a database.
package store

import (
	"context"
	"errors"
	"time"

	"follower-audit/internal/models"
)

// ErrStorageUnavailable means no dataset snapshot exists yet. It is fatal
// to the calling operation: there is nothing to read until a bootstrap
// crawl has run.
var ErrStorageUnavailable = errors.New("no dataset snapshot available")

// Updatable fields for UpdateSubset.
const (
	FieldFlags      = "flags"
	FieldFollowings = "followings"
)

// Store is the persistent keyed-record collection of Account rows.
// Implementations assume a single writer; callers serialize top-level
// operations themselves.
type Store interface {
	// Load returns the full persisted collection in its saved order.
	// A column projection limits which fields are materialized; fields
	// outside the projection come back as zero values. No projection
	// loads everything.
	Load(ctx context.Context, columns ...string) ([]models.Account, error)

	// Save atomically replaces the persisted collection, preserving the
	// given row order.
	Save(ctx context.Context, accounts []models.Account) error

	// UpdateSubset overwrites one field on the named rows without
	// touching others. usernames and values are parallel slices. For
	// FieldFollowings the value is a JSON string array.
	UpdateSubset(ctx context.Context, field string, usernames []string, values []string) error

	// SaveFollowings replaces the derived followings collection.
	SaveFollowings(ctx context.Context, snaps []models.FollowingSnapshot) error

	// ReferenceTime returns the last dataset-refresh timestamp.
	ReferenceTime(ctx context.Context) (time.Time, error)

	// StampReferenceTime records a new dataset-refresh timestamp.
	StampReferenceTime(ctx context.Context, t time.Time) error
}
