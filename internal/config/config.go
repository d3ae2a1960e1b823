package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	// DataDir backs the CSV record store. When DBDSN is set the Postgres
	// store is used instead and DataDir is ignored.
	DataDir string
	DBDSN   string

	// RedisDSN enables the fetch-page cache when non-empty.
	RedisDSN string

	TwitterBaseURL     string
	TwitterBearerToken string

	// MainAccount is the seed whose followers the dataset tracks. Only
	// used as a default by callers; every crawl can name its own seed.
	MainAccount string

	CORSOrigins      []string
	CrawlErrorBudget int

	Rules RuleConfig
}

// RuleConfig is the tunable surface of the flag engine. It can be
// overridden wholesale from a YAML file (RULES_FILE).
type RuleConfig struct {
	// LowFollowerThresh flags accounts following fewer people than this.
	// Negative disables the rule.
	LowFollowerThresh int `yaml:"low_follower_thresh"`

	// FollowersPerDayThresh is the growth-rate ceiling. Set it very high
	// to effectively disable the growth check.
	FollowersPerDayThresh float64 `yaml:"followers_per_day_thresh"`

	// TextToFlag entries are matched case-insensitively against
	// name+description. They are lowercased at load time.
	TextToFlag []string `yaml:"text_to_flag"`

	// EmojiToFlag entries are emoji short-codes in :slug: form, matched
	// after emoji in the text are normalized to the same form.
	// Capitalization matters here.
	EmojiToFlag []string `yaml:"emoji_to_flag"`

	AlphanumericCheckEnabled bool `yaml:"alphanumeric_check_enabled"`
	NgramCheckEnabled        bool `yaml:"ngram_check_enabled"`
}

func defaultRules() RuleConfig {
	return RuleConfig{
		LowFollowerThresh:     3,
		FollowersPerDayThresh: 10,
		TextToFlag:            []string{"whatsapp", "% return", "he/him", "they/them", "she/her"},
		EmojiToFlag: []string{
			":flag-ukraine:", ":rainbow:", ":rainbow-flag:", ":pregnant-man", ":transgender-",
		},
		AlphanumericCheckEnabled: true,
		NgramCheckEnabled:        true,
	}
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		DataDir:            getenvDefault("DATA_DIR", "data"),
		DBDSN:              os.Getenv("DB_DSN"),
		RedisDSN:           os.Getenv("REDIS_DSN"),
		TwitterBaseURL:     getenvDefault("TWITTER_BASE_URL", "https://api.twitter.com/2"),
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		MainAccount:        os.Getenv("MAIN_ACCOUNT_USERNAME"),
		CrawlErrorBudget:   5,
		Rules:              defaultRules(),
	}

	if v := os.Getenv("CRAWL_ERROR_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, errors.New("CRAWL_ERROR_BUDGET must be a positive integer")
		}
		cfg.CrawlErrorBudget = n
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"}
	}

	if path := os.Getenv("RULES_FILE"); path != "" {
		rules, err := LoadRules(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Rules = rules
	}
	cfg.Rules.normalize()

	return cfg, nil
}

// LoadRules reads a RuleConfig from a YAML file. Fields absent from the
// file keep their defaults.
func LoadRules(path string) (RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleConfig{}, fmt.Errorf("read rules file: %w", err)
	}

	rules := defaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleConfig{}, fmt.Errorf("parse rules file: %w", err)
	}
	rules.normalize()
	return rules, nil
}

func (r *RuleConfig) normalize() {
	for i := range r.TextToFlag {
		r.TextToFlag[i] = strings.ToLower(r.TextToFlag[i])
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
