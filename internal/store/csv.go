package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"follower-audit/internal/models"
)

// Delimiter is intentionally a character people rarely put in a profile;
// free-text fields have it stripped before write so columns stay intact.
const Delimiter = ';'

const (
	accountsFile   = "accounts.csv"
	followingsFile = "followings.csv"
	timestampFile  = "generated_at.txt"

	createdAtLayout = "2006-01-02 15:04:05"
	stampLayout     = "2006-01-02 15:04:05.000000"
)

var accountColumns = []string{
	"username", "name", "id", "created_at", "description", "location",
	"followers_count", "friends_count", "statuses_count",
	"favourites_count", "subscriptions_count", "protected", "verified",
	"followings", "flags",
}

var followingColumns = []string{
	"username", "id", "description", "location", "statuses_count",
	"followers_count", "friends_count", "protected", "verified",
	"followed_by_username",
}

// CSVStore keeps the dataset in delimiter-separated files under a data
// directory, plus a small marker file with the last refresh timestamp.
type CSVStore struct {
	dir string
}

func NewCSV(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) Load(_ context.Context, columns ...string) ([]models.Account, error) {
	f, err := os.Open(filepath.Join(s.dir, accountsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStorageUnavailable
		}
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = Delimiter
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrStorageUnavailable
	}

	header := rows[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	wanted := map[string]bool{}
	for _, c := range columns {
		wanted[c] = true
	}
	want := func(col string) bool { return len(wanted) == 0 || wanted[col] }

	accounts := make([]models.Account, 0, len(rows)-1)
	for _, row := range rows[1:] {
		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) || !want(col) {
				return ""
			}
			return row[i]
		}

		var acct models.Account
		acct.Username = field("username")
		acct.Name = field("name")
		acct.ID = field("id")
		acct.Description = field("description")
		acct.Location = field("location")
		acct.Flags = field("flags")
		acct.FollowersCount = parseInt(field("followers_count"))
		acct.FriendsCount = parseInt(field("friends_count"))
		acct.StatusesCount = parseInt(field("statuses_count"))
		acct.FavouritesCount = parseInt(field("favourites_count"))
		acct.SubscriptionsCount = parseInt(field("subscriptions_count"))
		acct.Protected = parseBool(field("protected"))
		acct.Verified = parseBool(field("verified"))

		if v := field("created_at"); v != "" {
			if t, err := time.Parse(createdAtLayout, v); err == nil {
				acct.CreatedAt = t
			}
		}
		acct.Followings = decodeFollowings(field("followings"))

		accounts = append(accounts, acct)
	}

	return accounts, nil
}

func (s *CSVStore) Save(_ context.Context, accounts []models.Account) error {
	rows := make([][]string, 0, len(accounts)+1)
	rows = append(rows, accountColumns)
	for _, a := range accounts {
		rows = append(rows, []string{
			sanitize(a.Username),
			sanitize(a.Name),
			sanitize(a.ID),
			a.CreatedAt.Format(createdAtLayout),
			sanitize(a.Description),
			sanitize(a.Location),
			strconv.Itoa(a.FollowersCount),
			strconv.Itoa(a.FriendsCount),
			strconv.Itoa(a.StatusesCount),
			strconv.Itoa(a.FavouritesCount),
			strconv.Itoa(a.SubscriptionsCount),
			strconv.FormatBool(a.Protected),
			strconv.FormatBool(a.Verified),
			encodeFollowings(a.Followings),
			sanitize(a.Flags),
		})
	}
	return s.writeFile(accountsFile, rows)
}

func (s *CSVStore) UpdateSubset(ctx context.Context, field string, usernames []string, values []string) error {
	if len(usernames) != len(values) {
		return fmt.Errorf("update subset: %d usernames for %d values", len(usernames), len(values))
	}
	if field != FieldFlags && field != FieldFollowings {
		return fmt.Errorf("update subset: unsupported field %q", field)
	}

	accounts, err := s.Load(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]int, len(accounts))
	for i, a := range accounts {
		byName[a.Username] = i
	}

	for i, username := range usernames {
		idx, ok := byName[username]
		if !ok {
			continue
		}
		switch field {
		case FieldFlags:
			accounts[idx].Flags = values[i]
		case FieldFollowings:
			accounts[idx].Followings = decodeFollowings(values[i])
		}
	}

	return s.Save(ctx, accounts)
}

func (s *CSVStore) SaveFollowings(_ context.Context, snaps []models.FollowingSnapshot) error {
	rows := make([][]string, 0, len(snaps)+1)
	rows = append(rows, followingColumns)
	for _, f := range snaps {
		rows = append(rows, []string{
			sanitize(f.Username),
			sanitize(f.ID),
			sanitize(f.Description),
			sanitize(f.Location),
			strconv.Itoa(f.StatusesCount),
			strconv.Itoa(f.FollowersCount),
			strconv.Itoa(f.FriendsCount),
			strconv.FormatBool(f.Protected),
			strconv.FormatBool(f.Verified),
			sanitize(f.FollowedByUsername),
		})
	}
	return s.writeFile(followingsFile, rows)
}

func (s *CSVStore) ReferenceTime(_ context.Context) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, timestampFile))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, ErrStorageUnavailable
		}
		return time.Time{}, fmt.Errorf("read timestamp file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	for _, layout := range []string{stampLayout, createdAtLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
}

func (s *CSVStore) StampReferenceTime(_ context.Context, t time.Time) error {
	path := filepath.Join(s.dir, timestampFile)
	if err := os.WriteFile(path, []byte(t.Format(stampLayout)), 0o644); err != nil {
		return fmt.Errorf("write timestamp file: %w", err)
	}
	return nil
}

// writeFile replaces name atomically: write a temp file, then rename it
// over the target so readers never see a half-written table.
func (s *CSVStore) writeFile(name string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	w.Comma = Delimiter
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func sanitize(v string) string {
	v = strings.ReplaceAll(v, string(Delimiter), " ")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}

func encodeFollowings(followings []string) string {
	if len(followings) == 0 {
		return "[]"
	}
	data, err := json.Marshal(followings)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeFollowings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func parseInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return b
}
