// Package licenseclient validates a license key against the license server and
// gates work on the result. A successful validation is cached for a freshness
// window so repeated checks do not hit the network.
//
// A Client is meant to be used from one goroutine at a time; callers that share
// one must serialize their calls.
package licenseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/fingerprint"
)

const (
	DefaultFreshness = 3600 * time.Second
	DefaultTimeout   = 30 * time.Second

	validatePath = "/api/validate"
)

var (
	ErrServerUnreachable = errors.New("license server unreachable")
	ErrLicenseInvalid    = errors.New("license validation failed")
	ErrLicenseRejected   = errors.New("invalid license")
)

// InvalidError carries the server's reason for refusing a validation request.
type InvalidError struct {
	StatusCode int
	Detail     string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", ErrLicenseInvalid, e.StatusCode, e.Detail)
}

func (e *InvalidError) Unwrap() error {
	return ErrLicenseInvalid
}

type cacheEntry struct {
	token       string
	features    []string
	validatedAt time.Time
}

type Client struct {
	licenseKey   string
	apiURL       string
	fingerprints fingerprint.Provider
	httpClient   *http.Client
	timeout      time.Duration
	freshness    time.Duration
	now          func() time.Time

	mu    sync.Mutex
	cache *cacheEntry
}

type Option func(*Client)

func WithFingerprinter(p fingerprint.Provider) Option {
	return func(c *Client) {
		c.fingerprints = p
	}
}

// WithHTTPClient sets the transport client. It is copied, never modified;
// nil keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each validation request, regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFreshness(d time.Duration) Option {
	return func(c *Client) {
		c.freshness = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(licenseKey, apiURL string, opts ...Option) *Client {
	c := &Client{
		licenseKey:   licenseKey,
		apiURL:       strings.TrimRight(apiURL, "/"),
		fingerprints: fingerprint.NewHost(),
		httpClient:   http.DefaultClient,
		timeout:      DefaultTimeout,
		freshness:    DefaultFreshness,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	hc.Timeout = c.timeout
	c.httpClient = &hc
	return c
}

// Validate reports whether the license is valid. A cached success younger than
// the freshness window is returned without contacting the server.
func (c *Client) Validate(ctx context.Context) (bool, error) {
	if c.fresh() {
		return true, nil
	}

	reqBody, err := json.Marshal(dto.ValidateRequest{
		LicenseKey: c.licenseKey,
		HardwareID: optional(c.fingerprints.Fingerprint()),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+validatePath, bytes.NewReader(reqBody))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: failed to read response: %v", ErrServerUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		var errResp dto.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			detail = errResp.Detail
		}
		slog.Warn("License validation refused", "status", resp.StatusCode, "detail", detail)
		return false, &InvalidError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var valResp dto.ValidateResponse
	if err := json.Unmarshal(body, &valResp); err != nil {
		return false, fmt.Errorf("%w: failed to parse response: %v", ErrLicenseInvalid, err)
	}

	if !valResp.Valid {
		return false, nil
	}

	c.mu.Lock()
	c.cache = &cacheEntry{
		token:       valResp.Token,
		features:    valResp.Features,
		validatedAt: c.now(),
	}
	c.mu.Unlock()

	slog.Debug("License validated", "features", valResp.Features)
	return true, nil
}

// RunGated runs action once, and only after the license validated.
func (c *Client) RunGated(ctx context.Context, action func() error) error {
	valid, err := c.Validate(ctx)
	if err != nil {
		return err
	}
	if !valid {
		return ErrLicenseRejected
	}
	return action()
}

// Token returns the cached validation token, or "" when there is none.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		return ""
	}
	return c.cache.token
}

// Features returns the feature set from the last successful validation.
func (c *Client) Features() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		return nil
	}
	return append([]string(nil), c.cache.features...)
}

// Invalidate forces the next Validate to contact the server.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

func (c *Client) fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil || c.cache.token == "" {
		return false
	}
	return c.now().Sub(c.cache.validatedAt) < c.freshness
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
