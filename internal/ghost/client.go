// Package ghost is a minimal client of the Ghost Admin API.
package ghost

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/validate"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection settings of a Ghost site.
type Config struct {
	// APIURL is the Admin API host, e.g. https://example.ghost.io.
	APIURL string
	// AdminToken is the Admin API key in "id:secret" form, secret hex encoded.
	AdminToken string
	// APIVersion is sent as Accept-Version when set (e.g. "v5.0").
	APIVersion string
	Timeout    time.Duration
}

// Client talks to the Ghost Admin API. It is safe for concurrent use.
type Client struct {
	apiURL  string
	version string
	keyID   string
	secret  []byte
	http    *http.Client
	now     func() time.Time
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if !validate.URL(cfg.APIURL) {
		return nil, fmt.Errorf("ghost: invalid api url %q", cfg.APIURL)
	}
	if !validate.Credential(cfg.AdminToken) {
		return nil, fmt.Errorf("ghost: admin token must have the form id:secret")
	}
	id, rawSecret, _ := strings.Cut(cfg.AdminToken, ":")
	secret, err := hex.DecodeString(rawSecret)
	if err != nil {
		return nil, fmt.Errorf("ghost: admin token secret is not hex: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiURL:  strings.TrimSuffix(cfg.APIURL, "/"),
		version: cfg.APIVersion,
		keyID:   id,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.apiURL + "/ghost/api/admin/" + strings.TrimPrefix(path, "/")
}

// do sends an authenticated request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("ghost: build request: %w", err)
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.version != "" {
		req.Header.Set("Accept-Version", c.version)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ghost: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("ghost: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ghost: decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ghost: encode request: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(payload), out)
}
