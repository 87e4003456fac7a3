// Package resource reads records owned by sibling services (products,
// announcements) that chat messages refer to.
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
)

type Kind string

const (
	Product      Kind = "product"
	Announcement Kind = "announcement"
)

const maxBodySize = 1 << 20

// Resource is the part of a collaborator record the chat needs. Raw keeps
// the full payload.
type Resource struct {
	Kind  Kind
	ID    string
	Owner string
	Title string
	Raw   map[string]any
}

// Fetcher is implemented by Client.
type Fetcher interface {
	Fetch(ctx context.Context, kind Kind, id string) (*Resource, error)
	ContentURL(kind Kind, id string) (string, error)
}

// Client calls GET <base_url>/<kind>-data/<id> with a per-attempt timeout
// and retries network errors and 5xx answers with linear backoff.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	services map[Kind]config.ResourceConfig
}

var _ Fetcher = (*Client)(nil)

func NewClient(cfg config.ResourcesConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultResourceTimeout
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
		retries: retries,
		backoff: cfg.Backoff,
		services: map[Kind]config.ResourceConfig{
			Product:      cfg.Product,
			Announcement: cfg.Announcement,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) service(kind Kind) (config.ResourceConfig, error) {
	svc, ok := c.services[kind]
	if !ok || svc.BaseURL == "" {
		return config.ResourceConfig{}, apperr.Validation(fmt.Sprintf("unsupported resource type %q", kind))
	}
	return svc, nil
}

// Fetch loads one record. A 404 is a not-found error; every other failure
// is an upstream error.
func (c *Client) Fetch(ctx context.Context, kind Kind, id string) (*Resource, error) {
	svc, err := c.service(kind)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("resource id is required")
	}

	endpoint := strings.TrimRight(svc.BaseURL, "/") + "/" + string(kind) + "-data/" + url.PathEscape(id)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperr.Upstream("request cancelled", ctx.Err())
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		res, retry, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			res.Kind = kind
			if res.ID == "" {
				res.ID = id
			}
			return res, nil
		}
		lastErr = err
		if !retry {
			break
		}
		logger.Warningf("Fetching %s failed (attempt %d): %v", endpoint, attempt+1, err)
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (*Resource, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, apperr.Upstream("invalid collaborator url", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, apperr.Upstream("collaborator unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, apperr.NotFound("resource not found")
	case resp.StatusCode >= 500:
		return nil, true, apperr.Upstream(fmt.Sprintf("collaborator returned %d", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, apperr.Upstream(fmt.Sprintf("collaborator returned %d", resp.StatusCode), nil)
	}

	var raw map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&raw); err != nil {
		return nil, false, apperr.Upstream("collaborator returned invalid JSON", err)
	}

	return &Resource{
		ID:    stringField(raw, "id", "guid"),
		Owner: stringField(raw, "user", "user_guid", "user_id"),
		Title: stringField(raw, "title", "short_description", "name"),
		Raw:   raw,
	}, false, nil
}

// stringField returns the first non-empty field among keys. Nested objects
// contribute their guid or id.
func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case map[string]any:
			if s := stringField(v, "guid", "id"); s != "" {
				return s
			}
		}
	}
	return ""
}

// ContentURL renders the public URL stored as the content of a reference
// message.
func (c *Client) ContentURL(kind Kind, id string) (string, error) {
	svc, err := c.service(kind)
	if err != nil {
		return "", err
	}
	if !strings.Contains(svc.ContentURL, "%s") {
		return "", apperr.Validation(fmt.Sprintf("no content url configured for %s", kind))
	}
	return fmt.Sprintf(svc.ContentURL, url.PathEscape(id)), nil
}
