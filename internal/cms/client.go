package cms

import (
	"bytes"
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

const managementContentType = "application/vnd.contentful.management.v1+json"

var (
	// ErrNotConfigured means the space id or management token is missing.
	ErrNotConfigured = errors.New("contentful credentials are not configured")
	// ErrEntryExists is returned when an entry with the requested id is already stored.
	ErrEntryExists = errors.New("contentful entry already exists")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sys is the metadata block Contentful returns on every resource.
type Sys struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// Environment is the subset of the environment resource the ingestion job checks.
type Environment struct {
	Sys  Sys    `json:"sys"`
	Name string `json:"name"`
}

// Entry is a created or published entry.
type Entry struct {
	Sys    Sys            `json:"sys"`
	Fields map[string]any `json:"fields"`
}

// Fields maps field ids to locale-keyed values.
type Fields map[string]map[string]any

// Set stores value for field under locale.
func (f Fields) Set(field, locale string, value any) {
	f[field] = map[string]any{locale: value}
}

// Client 调用 Contentful 内容管理 API。
type Client struct {
	baseURL     string
	spaceID     string
	environment string
	token       string
	http        httpDoer
	retry       retry.Policy
}

// NewClient builds a management client for one space environment.
func NewClient(baseURL, spaceID, environment, token string, timeout time.Duration, attempts int) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.contentful.com"
	}
	if strings.TrimSpace(environment) == "" {
		environment = "master"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		spaceID:     strings.TrimSpace(spaceID),
		environment: strings.TrimSpace(environment),
		token:       strings.TrimSpace(token),
		http:        &http.Client{Timeout: timeout},
		retry:       retry.DefaultPolicy(attempts),
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

// Configured reports whether both space id and token are set.
func (c *Client) Configured() bool {
	return c.spaceID != "" && c.token != ""
}

// Environment fetches the configured environment, which doubles as a credentials check.
func (c *Client) Environment(ctx context.Context) (Environment, error) {
	var env Environment
	err := c.do(ctx, http.MethodGet, c.environmentPath(), nil, nil, &env)
	return env, err
}

// CreateEntryWithID 以指定 ID 创建 contentType 类型的条目。
func (c *Client) CreateEntryWithID(ctx context.Context, contentType, id string, fields Fields) (Entry, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return Entry{}, fmt.Errorf("encode entry: %w", err)
	}
	headers := map[string]string{"X-Contentful-Content-Type": contentType}

	var entry Entry
	err = c.do(ctx, http.MethodPut, c.entryPath(id), body, headers, &entry)
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return Entry{}, fmt.Errorf("%w: %s", ErrEntryExists, id)
		}
		return Entry{}, err
	}
	return entry, nil
}

// PublishEntry publishes the given version of an entry.
func (c *Client) PublishEntry(ctx context.Context, id string, version int) (Entry, error) {
	headers := map[string]string{"X-Contentful-Version": strconv.Itoa(version)}
	var entry Entry
	err := c.do(ctx, http.MethodPut, c.entryPath(id)+"/published", nil, headers, &entry)
	return entry, err
}

func (c *Client) environmentPath() string {
	return fmt.Sprintf("/spaces/%s/environments/%s", url.PathEscape(c.spaceID), url.PathEscape(c.environment))
}

func (c *Client) entryPath(id string) string {
	return c.environmentPath() + "/entries/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.retry.Do(ctx, func() error {
		return retry.Classify(c.once(ctx, method, path, body, headers, out))
	})
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create contentful request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", managementContentType)
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request contentful: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read contentful response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Sys     Sys    `json:"sys"`
		}
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return &retry.StatusError{Service: "contentful", StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode contentful response: %w", err))
	}
	return nil
}
