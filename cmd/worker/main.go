// The worker runs one crawl, flag, or graph pass and exits. It shares
// the API server's configuration surface, so both can point at the same
// dataset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"follower-audit/internal/config"
	"follower-audit/internal/crawler"
	"follower-audit/internal/db"
	"follower-audit/internal/flags"
	"follower-audit/internal/graph"
	"follower-audit/internal/logging"
	"follower-audit/internal/redis"
	"follower-audit/internal/store"
	"follower-audit/internal/twitter"
)

type deps struct {
	cfg     config.Config
	logger  *slog.Logger
	store   store.Store
	client  twitter.Client
	crawler *crawler.Crawler
	close   func()
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	closers := []func(){}

	var recordStore store.Store
	if cfg.DBDSN != "" {
		dbConn, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, dbConn.Close)

		pg := store.NewPostgres(dbConn)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		recordStore = pg
	} else {
		csvStore, err := store.NewCSV(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		recordStore = csvStore
	}

	var cache *redis.Client
	if cfg.RedisDSN != "" {
		cache, err = redis.New(cfg.RedisDSN)
		if err != nil {
			logger.Warn("redis_connect_failed", "error", err)
		} else {
			closers = append(closers, func() { cache.Close() })
		}
	}

	client := twitter.NewHTTPClient(cfg.TwitterBaseURL, cfg.TwitterBearerToken, cache, logger)
	cr := crawler.New(logger, recordStore, client, nil, cfg.CrawlErrorBudget)

	return &deps{
		cfg:     cfg,
		logger:  logger,
		store:   recordStore,
		client:  client,
		crawler: cr,
		close: func() {
			for _, fn := range closers {
				fn()
			}
		},
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "follower-audit-worker",
		Short:         "One-shot crawl, flag, and graph passes over the follower dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(bootstrapCmd(), expandCmd(), flagCmd(), graphCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func bootstrapCmd() *cobra.Command {
	var username string
	var pages int

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Fetch the seed account's followers and build a fresh dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			if username == "" {
				username = d.cfg.MainAccount
			}
			if username == "" {
				return fmt.Errorf("no username given and MAIN_ACCOUNT_USERNAME is unset")
			}

			count, err := d.crawler.Bootstrap(ctx, username, pages)
			if err != nil {
				return err
			}
			fmt.Printf("Done: %d accounts\n", count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "account whose followers to fetch (default MAIN_ACCOUNT_USERNAME)")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "pages of followers to fetch, roughly 50 accounts each")
	return cmd
}

func expandCmd() *cobra.Command {
	var pages, delaySeconds int

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Fetch the followings of every stored account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			result, err := d.crawler.Expand(ctx, pages, time.Duration(delaySeconds)*time.Second)
			if err != nil {
				return err
			}
			fmt.Printf("Done: %d rows fetched, %d errors, stopped early: %v\n",
				result.Fetched, result.Errors, result.Stopped)
			return nil
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 10, "pages of followings per account")
	cmd.Flags().IntVarP(&delaySeconds, "delay", "d", 45, "seconds to wait between external calls")
	return cmd
}

func flagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flag",
		Short: "Run the flag rules over the dataset and persist the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			accounts, err := d.store.Load(ctx)
			if err != nil {
				return err
			}

			ref, err := d.store.ReferenceTime(ctx)
			if err != nil {
				d.logger.Warn("reference_time_unavailable", "error", err)
				ref = time.Now()
			}

			engine := flags.NewEngine(d.cfg.Rules, flags.NewBigramDetector(), d.logger)
			results := engine.Evaluate(accounts, ref)

			for _, acct := range accounts {
				if reason, ok := results[acct.Username]; ok {
					fmt.Printf("%s\t%s\n", acct.Username, reason)
				}
			}

			if err := flags.Apply(ctx, d.store, accounts, results); err != nil {
				return err
			}
			fmt.Printf("Flagged %d users\n", len(results))
			return nil
		},
	}
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Build the similarity graph and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			accounts, err := d.store.Load(ctx, "username", "followings", "protected")
			if err != nil {
				return err
			}

			builder := graph.NewBuilder(d.logger)
			out, err := json.MarshalIndent(builder.Build(accounts), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
