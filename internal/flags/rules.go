package flags

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"

	"follower-audit/internal/models"
)

// lowFollowerRule flags accounts following fewer people than the
// threshold; generally this finds accounts that follow only the target.
// A negative threshold disables the rule.
type lowFollowerRule struct {
	thresh int
}

func (r *lowFollowerRule) Name() string { return "low_follower_count" }

func (r *lowFollowerRule) Evaluate(acct models.Account, _ time.Time) []string {
	if r.thresh < 0 {
		return nil
	}
	if acct.FriendsCount < r.thresh {
		return []string{"low_follower_count"}
	}
	return nil
}

// textEmojiRule matches configured substrings against name+description.
// Plain tokens match case-insensitively; emoji tokens match against the
// text with every emoji normalized to its :short-code: form. Every
// matching token contributes its own reason.
type textEmojiRule struct {
	texts  []string
	emojis []string
}

func (r *textEmojiRule) Name() string { return "text_or_emoji" }

func (r *textEmojiRule) Evaluate(acct models.Account, _ time.Time) []string {
	total := acct.Name + acct.Description

	var reasons []string

	lower := strings.ToLower(total)
	for _, token := range r.texts {
		if strings.Contains(lower, token) {
			reasons = append(reasons, fmt.Sprintf("flagged_text --- %s", token))
		}
	}

	demojized := demojize(total)
	for _, token := range r.emojis {
		if strings.Contains(demojized, token) {
			reasons = append(reasons, fmt.Sprintf("flagged_emoji --- %s", token))
		}
	}

	return reasons
}

// demojize rewrites every emoji in s to its :short-code: form so plain
// substring matching works on symbolic content.
func demojize(s string) string {
	return gomoji.ReplaceEmojisWithFunc(s, func(em gomoji.Emoji) string {
		return ":" + em.Slug + ":"
	})
}

var digitRuns = regexp.MustCompile(`\d+`)

// randomUsernameRule detects machine-generated usernames with two
// independently toggleable sub-checks; the first one that fires wins.
type randomUsernameRule struct {
	alphanumeric bool
	ngram        bool
	detector     Detector
}

func (r *randomUsernameRule) Name() string { return "random_username" }

func (r *randomUsernameRule) Evaluate(acct models.Account, _ time.Time) []string {
	if r.alphanumeric {
		runs := digitRuns.FindAllString(acct.Username, -1)
		numDigits := 0
		for _, run := range runs {
			numDigits += len(run)
		}
		if len(runs) >= 3 || numDigits > 6 ||
			(float64(numDigits) >= 0.6*float64(len(acct.Username)) && numDigits > 4) {
			return []string{"randomly_generated_@username_detected - alphanumeric method"}
		}
	}

	if r.ngram && r.detector != nil {
		// detector failures are swallowed: an unjudgeable username is
		// simply not flagged by this sub-check
		nonsense, err := r.detector.IsNonsense(acct.Username)
		if err == nil && nonsense {
			return []string{"randomly_generated_@username_detected - ngram method"}
		}
	}

	return nil
}

// growthRule flags abnormal follower growth. It emits at most one
// reason: the growth-rate check takes priority, and only when it does
// not fire is the recently-created check reported.
type growthRule struct {
	thresh float64
}

func (r *growthRule) Name() string { return "follower_growth" }

func (r *growthRule) Evaluate(acct models.Account, ref time.Time) []string {
	// whole days plus an epsilon so same-day accounts don't divide by zero
	days := int(ref.Sub(acct.CreatedAt).Hours() / 24)
	deltaDays := float64(days) + 1e-3

	followersPerDay := float64(acct.FollowersCount) / deltaDays

	// the bounds avoid false positives on tiny accounts and on genuinely
	// large/viral ones
	if followersPerDay >= r.thresh && acct.FollowersCount >= 10 && acct.FollowersCount < 5000 {
		return []string{fmt.Sprintf("gained_followers_too_fast: %d followers in %d days", acct.FollowersCount, days)}
	}

	if deltaDays < 3 {
		return []string{fmt.Sprintf("recently_created: Created %d days ago.", days)}
	}

	return nil
}
