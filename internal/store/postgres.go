package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"follower-audit/internal/db"
	"follower-audit/internal/models"
)

// PostgresStore keeps the dataset in Postgres. Row order is preserved
// through an explicit position column so Load returns the same ordering
// Save was given.
type PostgresStore struct {
	db *db.DB
}

func NewPostgres(d *db.DB) *PostgresStore {
	return &PostgresStore{db: d}
}

// EnsureSchema creates the dataset tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			username TEXT PRIMARY KEY,
			position INT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			followers_count INT NOT NULL DEFAULT 0,
			friends_count INT NOT NULL DEFAULT 0,
			statuses_count INT NOT NULL DEFAULT 0,
			favourites_count INT NOT NULL DEFAULT 0,
			subscriptions_count INT NOT NULL DEFAULT 0,
			protected BOOLEAN NOT NULL DEFAULT FALSE,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			followings TEXT[] NOT NULL DEFAULT '{}',
			flags TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS following_snapshots (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			statuses_count INT NOT NULL DEFAULT 0,
			followers_count INT NOT NULL DEFAULT 0,
			friends_count INT NOT NULL DEFAULT 0,
			protected BOOLEAN NOT NULL DEFAULT FALSE,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			followed_by_username TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_meta (
			id INT PRIMARY KEY CHECK (id = 1),
			refreshed_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load returns all rows in saved order. The column projection is
// advisory here; Postgres rows are cheap to materialize whole.
func (s *PostgresStore) Load(ctx context.Context, _ ...string) ([]models.Account, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT username, name, source_id, created_at, description, location,
			followers_count, friends_count, statuses_count,
			favourites_count, subscriptions_count, protected, verified,
			followings, flags
		 FROM accounts ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var createdAt *time.Time
		if err := rows.Scan(
			&a.Username, &a.Name, &a.ID, &createdAt, &a.Description,
			&a.Location, &a.FollowersCount, &a.FriendsCount,
			&a.StatusesCount, &a.FavouritesCount, &a.SubscriptionsCount,
			&a.Protected, &a.Verified, &a.Followings, &a.Flags,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if createdAt != nil {
			a.CreatedAt = *createdAt
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	if len(accounts) == 0 {
		return nil, ErrStorageUnavailable
	}
	return accounts, nil
}

func (s *PostgresStore) Save(ctx context.Context, accounts []models.Account) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	batch := &pgx.Batch{}
	for i, a := range accounts {
		var createdAt *time.Time
		if !a.CreatedAt.IsZero() {
			t := a.CreatedAt
			createdAt = &t
		}
		followings := a.Followings
		if followings == nil {
			followings = []string{}
		}
		batch.Queue(
			`INSERT INTO accounts
				(username, position, name, source_id, created_at, description,
				 location, followers_count, friends_count, statuses_count,
				 favourites_count, subscriptions_count, protected, verified,
				 followings, flags)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			 ON CONFLICT (username) DO NOTHING`,
			a.Username, i, a.Name, a.ID, createdAt, a.Description,
			a.Location, a.FollowersCount, a.FriendsCount, a.StatusesCount,
			a.FavouritesCount, a.SubscriptionsCount, a.Protected, a.Verified,
			followings, a.Flags,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert accounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSubset(ctx context.Context, field string, usernames []string, values []string) error {
	if len(usernames) != len(values) {
		return fmt.Errorf("update subset: %d usernames for %d values", len(usernames), len(values))
	}

	var stmt string
	switch field {
	case FieldFlags:
		stmt = `UPDATE accounts SET flags = $2 WHERE username = $1`
	case FieldFollowings:
		stmt = `UPDATE accounts SET followings = $2 WHERE username = $1`
	default:
		return fmt.Errorf("update subset: unsupported field %q", field)
	}

	batch := &pgx.Batch{}
	for i, username := range usernames {
		if field == FieldFollowings {
			followings := decodeFollowings(values[i])
			if followings == nil {
				followings = []string{}
			}
			batch.Queue(stmt, username, followings)
			continue
		}
		batch.Queue(stmt, username, values[i])
	}
	if err := s.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	return nil
}

func (s *PostgresStore) SaveFollowings(ctx context.Context, snaps []models.FollowingSnapshot) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save followings: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM following_snapshots`); err != nil {
		return fmt.Errorf("clear following snapshots: %w", err)
	}

	batch := &pgx.Batch{}
	for _, f := range snaps {
		batch.Queue(
			`INSERT INTO following_snapshots
				(username, source_id, description, location, statuses_count,
				 followers_count, friends_count, protected, verified,
				 followed_by_username)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			f.Username, f.ID, f.Description, f.Location, f.StatusesCount,
			f.FollowersCount, f.FriendsCount, f.Protected, f.Verified,
			f.FollowedByUsername,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert following snapshots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save followings: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReferenceTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.Pool.QueryRow(ctx,
		`SELECT refreshed_at FROM dataset_meta WHERE id = 1`,
	).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, ErrStorageUnavailable
		}
		return time.Time{}, fmt.Errorf("read reference time: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) StampReferenceTime(ctx context.Context, t time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO dataset_meta (id, refreshed_at) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET refreshed_at = EXCLUDED.refreshed_at`,
		t,
	)
	if err != nil {
		return fmt.Errorf("stamp reference time: %w", err)
	}
	return nil
}
