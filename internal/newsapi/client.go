package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/travelblog/internal/retry"
)

// ErrAPIKeyMissing is returned before any request when no key is configured.
var ErrAPIKeyMissing = errors.New("news api key is not configured")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Article is one entry of the everything endpoint.
type Article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Published parses PublishedAt, falling back to fallback when it is absent or malformed.
func (a Article) Published(fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(a.PublishedAt)); err == nil {
		return t
	}
	return fallback
}

// Query selects articles from the everything endpoint.
type Query struct {
	Q        string
	Language string
	PageSize int
}

type everythingResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

// Client fetches articles from NewsAPI.
type Client struct {
	endpoint string
	apiKey   string
	http     httpDoer
	retry    retry.Policy
}

// NewClient creates a client for the everything endpoint at endpoint.
func NewClient(endpoint, apiKey string, timeout time.Duration, attempts int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		http:     &http.Client{Timeout: timeout},
		retry:    retry.DefaultPolicy(attempts),
	}
}

func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
		return
	}
	c.http = client
}

func (c *Client) SetRetryPolicy(policy retry.Policy) {
	c.retry = policy
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Everything 拉取匹配 q 的最新文章，临时性失败会重试。
func (c *Client) Everything(ctx context.Context, q Query) ([]Article, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	var articles []Article
	err := c.retry.Do(ctx, func() error {
		var err error
		articles, err = c.fetch(ctx, q)
		return retry.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (c *Client) fetch(ctx context.Context, q Query) ([]Article, error) {
	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("sortBy", "publishedAt")
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create news request: %w", err))
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "travelblog-ingest/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request news api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read news api response: %w", err)
	}

	var payload everythingResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || payload.Status == "error" {
		message := payload.Message
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		status := resp.StatusCode
		if status < 300 {
			status = http.StatusBadRequest
		}
		return nil, &retry.StatusError{Service: "newsapi", StatusCode: status, Message: message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode news api response: %w", decodeErr)
	}
	return payload.Articles, nil
}
