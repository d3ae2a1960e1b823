// Package flags classifies accounts as suspicious or benign. A fixed
// ordered list of independent rules runs against every non-verified
// account; each rule contributes zero or more reason strings, and an
// account with at least one reason is flagged. Evaluation never mutates
// its input; the caller applies the resulting decisions to the store.
package flags

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"follower-audit/internal/config"
	"follower-audit/internal/models"
	"follower-audit/internal/store"
)

// Rule is one independent heuristic. It returns the reasons it flags the
// account for, or an empty list. Rules must be pure: same account and
// reference time, same reasons.
type Rule interface {
	Name() string
	Evaluate(acct models.Account, ref time.Time) []string
}

type Engine struct {
	rules []Rule
	log   *slog.Logger
}

// NewEngine builds the engine with the standard rule order: low follower
// count, text/emoji match, random username, follower growth. The order is
// fixed; it only affects the order reasons concatenate in, never the
// flag/no-flag outcome.
func NewEngine(cfg config.RuleConfig, detector Detector, log *slog.Logger) *Engine {
	return &Engine{
		log: log,
		rules: []Rule{
			&lowFollowerRule{thresh: cfg.LowFollowerThresh},
			&textEmojiRule{texts: cfg.TextToFlag, emojis: cfg.EmojiToFlag},
			&randomUsernameRule{
				alphanumeric: cfg.AlphanumericCheckEnabled,
				ngram:        cfg.NgramCheckEnabled,
				detector:     detector,
			},
			&growthRule{thresh: cfg.FollowersPerDayThresh},
		},
	}
}

// Evaluate runs every rule over every account and returns the joined
// reason string per flagged username. Verified accounts are exempt and
// skipped outright.
func (e *Engine) Evaluate(accounts []models.Account, ref time.Time) map[string]string {
	results := make(map[string]string)

	for _, acct := range accounts {
		if acct.Verified {
			continue
		}

		var reasons []string
		for _, rule := range e.rules {
			reasons = append(reasons, rule.Evaluate(acct, ref)...)
		}
		if len(reasons) == 0 {
			continue
		}

		results[acct.Username] = strings.Join(reasons, ", ")
		e.log.Debug("account_flagged", "username", acct.Username, "reasons", len(reasons))
	}

	return results
}

// Apply writes evaluation results back: every row gets an explicit flags
// value, either its joined reasons or the no-flag sentinel. Re-applying
// the same results is a no-op, which keeps flag passes idempotent.
func Apply(ctx context.Context, st store.Store, accounts []models.Account, results map[string]string) error {
	usernames := make([]string, 0, len(accounts))
	values := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		usernames = append(usernames, acct.Username)
		if reason, ok := results[acct.Username]; ok {
			values = append(values, reason)
		} else {
			values = append(values, models.FlagNone)
		}
	}
	return st.UpdateSubset(ctx, store.FieldFlags, usernames, values)
}
