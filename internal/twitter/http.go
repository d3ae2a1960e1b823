package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"follower-audit/internal/redis"
)

const (
	maxAttemptsPerPage = 3
	pageCacheTTL       = 5 * time.Minute
)

// HTTPClient talks to the social network's user API with a bearer token.
// An optional redis cache keeps whole fetch results for a few minutes so
// repeated crawl triggers don't burn through the external rate limit.
type HTTPClient struct {
	baseURL    string
	bearer     string
	httpClient *http.Client
	cache      *redis.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, bearerToken string, cache *redis.Client, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		bearer:  bearerToken,
		cache:   cache,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type userPage struct {
	Users   []Profile `json:"users"`
	HasMore bool      `json:"has_more"`
}

func (c *HTTPClient) FetchFollowers(ctx context.Context, username string, pages int) ([]Profile, error) {
	return c.fetchPaginated(ctx, "followers", username, pages, 0)
}

func (c *HTTPClient) FetchFollowings(ctx context.Context, username string, pages int, wait time.Duration) ([]Profile, error) {
	return c.fetchPaginated(ctx, "followings", username, pages, wait)
}

func (c *HTTPClient) fetchPaginated(ctx context.Context, op, username string, pages int, wait time.Duration) ([]Profile, error) {
	cacheKey := fmt.Sprintf("fetch:%s:%s:%d", op, username, pages)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var profiles []Profile
			if err := json.Unmarshal([]byte(cached), &profiles); err == nil {
				c.logger.Debug("fetch_cache_hit", "op", op, "username", username)
				return profiles, nil
			}
		}
	}

	var profiles []Profile
	for page := 1; page <= pages; page++ {
		if page > 1 && wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.fetchPage(ctx, op, username, page)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, result.Users...)
		if !result.HasMore {
			break
		}
	}

	if c.cache != nil {
		if data, err := json.Marshal(profiles); err == nil {
			if err := c.cache.Set(ctx, cacheKey, string(data), pageCacheTTL); err != nil {
				c.logger.Debug("fetch_cache_store_failed", "error", err)
			}
		}
	}

	c.logger.Info("fetch_completed", "op", op, "username", username, "accounts", len(profiles))
	return profiles, nil
}

func (c *HTTPClient) fetchPage(ctx context.Context, op, username string, page int) (*userPage, error) {
	endpoint := fmt.Sprintf("%s/users/%s/%s?page=%d", c.baseURL, url.PathEscape(username), op, page)

	var lastErr error
	for attempt := 0; attempt < maxAttemptsPerPage; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.bearer)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("fetch_request_failed", "op", op, "username", username, "page", page, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			resp.Body.Close()
			c.logger.Warn("fetch_rate_limited", "username", username, "retry_after", retryAfter, "attempt", attempt+1)
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("rate limited")
			continue
		}

		result, err := c.decodePage(resp, op, username)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: fetch %s of %s: %v", ErrTransient, op, username, lastErr)
}

func (c *HTTPClient) decodePage(resp *http.Response, op, username string) (*userPage, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var page userPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("%w: decode %s page: %v", ErrTransient, op, err)
		}
		return &page, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: user %s not found", ErrTransient, username)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: unauthorized fetching %s of %s", ErrTransient, op, username)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, string(body))
	}
}

func (c *HTTPClient) Block(ctx context.Context, username string) error {
	return c.postAction(ctx, username, "block")
}

func (c *HTTPClient) Unblock(ctx context.Context, username string) error {
	return c.postAction(ctx, username, "unblock")
}

func (c *HTTPClient) postAction(ctx context.Context, username, action string) error {
	endpoint := fmt.Sprintf("%s/users/%s/%s", c.baseURL, url.PathEscape(username), action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, action, username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %s %s: status %d", ErrTransient, action, username, resp.StatusCode)
	}

	c.logger.Info("account_action", "action", action, "username", username)
	return nil
}
