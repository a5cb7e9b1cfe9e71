// Package social mirrors listings to a Facebook page feed through the
// Graph API.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
)

// Post is a feed entry as the listing core sees it
type Post struct {
	ID      string
	Message string
}

// Config holds Graph API settings
type Config struct {
	BaseURL   string
	PageID    string
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// Client talks to the Graph API using the holder's current tokens
type Client struct {
	cfg     Config
	tokens  *TokenHolder
	http    *http.Client
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a Graph API client
func NewClient(cfg Config, tokens *TokenHolder, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger = logger.Named("social")
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker(5, time.Minute, logger),
		logger:  logger,
	}
}

type feedResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
}

type idResponse struct {
	ID string `json:"id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ListPosts returns the page feed. Entries without an id are dropped.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	q := url.Values{"fields": {"id,message"}, "access_token": {c.feedToken()}}
	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, "/"+c.cfg.PageID+"/feed", q, &resp); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.ID == "" {
			continue
		}
		posts = append(posts, Post{ID: d.ID, Message: d.Message})
	}
	return posts, nil
}

// CreatePost publishes a new post and returns its id
func (c *Client) CreatePost(ctx context.Context, message, link string) (string, error) {
	q := url.Values{"message": {message}, "published": {"true"}, "access_token": {c.feedToken()}}
	if link != "" {
		q.Set("link", link)
	}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/"+c.cfg.PageID+"/feed", q, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: graph api returned no post id", apperr.ErrExternal)
	}
	return resp.ID, nil
}

// UpdatePost rewrites an existing post in place
func (c *Client) UpdatePost(ctx context.Context, postID, message, link string) error {
	q := url.Values{"message": {message}, "access_token": {c.feedToken()}}
	if link != "" {
		q.Set("link", link)
	}
	return c.do(ctx, http.MethodPost, "/"+postID, q, nil)
}

// Renew exchanges the user token for a long-lived one, then looks up the
// page token with it and swaps both into the holder
func (c *Client) Renew(ctx context.Context) error {
	current := c.tokens.Get()

	var user tokenResponse
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.cfg.AppID},
		"client_secret":     {c.cfg.AppSecret},
		"fb_exchange_token": {current.UserToken},
	}
	if err := c.do(ctx, http.MethodGet, "/oauth/access_token", q, &user); err != nil {
		return fmt.Errorf("failed to exchange user token: %w", err)
	}
	if user.AccessToken == "" {
		return fmt.Errorf("%w: token exchange returned no access token", apperr.ErrExternal)
	}

	var accounts accountsResponse
	if err := c.do(ctx, http.MethodGet, "/me/accounts", url.Values{"access_token": {user.AccessToken}}, &accounts); err != nil {
		return fmt.Errorf("failed to fetch page token: %w", err)
	}
	page := ""
	for _, a := range accounts.Data {
		if a.ID == c.cfg.PageID {
			page = a.AccessToken
			break
		}
	}
	if page == "" {
		return fmt.Errorf("%w: page %s not found among managed accounts", apperr.ErrExternal, c.cfg.PageID)
	}

	if err := c.tokens.Swap(ctx, Tokens{UserToken: user.AccessToken, PageToken: page}); err != nil {
		// tokens are live in memory, only persistence failed
		c.logger.Warn("social tokens not persisted", zap.Error(err))
	}
	c.logger.Info("social tokens renewed")
	return nil
}

func (c *Client) feedToken() string {
	t := c.tokens.Get()
	if t.PageToken != "" {
		return t.PageToken
	}
	return t.UserToken
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out interface{}) error {
	if !c.breaker.CanProceed() {
		return fmt.Errorf("%w: graph api circuit open", apperr.ErrExternal)
	}

	endpoint := c.cfg.BaseURL + path
	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + q.Encode()
	} else {
		body = strings.NewReader(q.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure(0)
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrExternal, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.breaker.RecordFailure(resp.StatusCode)
		return fmt.Errorf("%w: failed to read graph response: %v", apperr.ErrExternal, err)
	}
	if resp.StatusCode >= 300 {
		c.breaker.RecordFailure(resp.StatusCode)
		var ge graphError
		_ = json.Unmarshal(raw, &ge)
		return fmt.Errorf("%w: graph api %s %s returned %d: %s", apperr.ErrExternal, method, path, resp.StatusCode, ge.Error.Message)
	}
	c.breaker.RecordSuccess()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode graph response: %v", apperr.ErrExternal, err)
	}
	return nil
}
