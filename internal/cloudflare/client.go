package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// BaseURL is the Cloudflare v4 API base URL
	BaseURL = "https://api.cloudflare.com/client/v4"

	// DefaultRoutingDomain is the suffix tunnel CNAME targets point at
	DefaultRoutingDomain = "cfargotunnel.com"

	recordType = "CNAME"
)

// Client is a Cloudflare API client bound to one account, zone and tunnel.
// Every method is a single blocking round trip; nothing is retried.
type Client struct {
	baseURL       string
	creds         Credentials
	routingDomain string
	httpClient    *http.Client
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets an overall per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRoutingDomain overrides the CNAME target suffix.
func WithRoutingDomain(domain string) Option {
	return func(c *Client) {
		if domain != "" {
			c.routingDomain = domain
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new Cloudflare client
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:       BaseURL,
		creds:         creds,
		routingDomain: DefaultRoutingDomain,
		httpClient:    &http.Client{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TunnelID returns the tunnel the client is bound to.
func (c *Client) TunnelID() string {
	return c.creds.TunnelID
}

// RecordTarget returns the CNAME content routes of this tunnel point at.
func (c *Client) RecordTarget() string {
	return fmt.Sprintf("%s.%s", c.creds.TunnelID, c.routingDomain)
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

func (e *envelope) hasResult() bool {
	trimmed := bytes.TrimSpace(e.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// doRequest performs one API call and normalizes the response envelope.
// It returns the raw result, which may be empty.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("cloudflare request failed", "op", op, "method", method, "path", path, "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("cloudflare request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 256 {
			msg = msg[:256]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Op: op, Status: resp.StatusCode, Messages: []string{msg}}
	}

	if !env.Success {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &APIError{Op: op, Status: resp.StatusCode, Messages: msgs}
	}

	if !env.hasResult() {
		return nil, nil
	}
	return env.Result, nil
}

func (c *Client) zonePath() string {
	return fmt.Sprintf("/zones/%s", url.PathEscape(c.creds.ZoneID))
}

func (c *Client) dnsPath() string {
	return c.zonePath() + "/dns_records"
}

func (c *Client) tunnelConfigPath() string {
	return fmt.Sprintf("/accounts/%s/cfd_tunnel/%s/configurations",
		url.PathEscape(c.creds.AccountID), url.PathEscape(c.creds.TunnelID))
}

// VerifyConnection probes the zone to check the credentials. No side effects.
func (c *Client) VerifyConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, "verify connection", http.MethodGet, c.zonePath(), nil)
	return err
}

// GetIngressConfig fetches the tunnel's current configuration
func (c *Client) GetIngressConfig(ctx context.Context) (*TunnelConfig, error) {
	const op = "get tunnel config"

	result, err := c.doRequest(ctx, op, http.MethodGet, c.tunnelConfigPath(), nil)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingPayload)
	}

	var payload struct {
		Config *TunnelConfig `json:"config"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse tunnel config: %w", err)
	}
	if payload.Config == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingPayload)
	}
	return payload.Config, nil
}

// ReplaceIngressConfig overwrites the tunnel's whole configuration. There is
// no version check: the last writer wins.
func (c *Client) ReplaceIngressConfig(ctx context.Context, cfg *TunnelConfig) error {
	body := struct {
		Config *TunnelConfig `json:"config"`
	}{Config: cfg}

	_, err := c.doRequest(ctx, "update tunnel config", http.MethodPut, c.tunnelConfigPath(), body)
	return err
}

// CreateDNSRecord creates a proxied CNAME for hostname pointing at the tunnel
func (c *Client) CreateDNSRecord(ctx context.Context, hostname string) error {
	body := map[string]any{
		"type":    recordType,
		"name":    hostname,
		"content": c.RecordTarget(),
		"proxied": true,
	}
	_, err := c.doRequest(ctx, "create CNAME record", http.MethodPost, c.dnsPath(), body)
	return err
}

// FindDNSRecordID looks up the CNAME record for hostname. It returns "" and
// a nil error when no record exists, and an *AmbiguousRecordError when more
// than one does.
func (c *Client) FindDNSRecordID(ctx context.Context, hostname string) (string, error) {
	query := url.Values{}
	query.Set("type", recordType)
	query.Set("name", hostname)

	result, err := c.doRequest(ctx, "find CNAME record", http.MethodGet, c.dnsPath()+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}

	var records []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(result, &records); err != nil {
		return "", fmt.Errorf("failed to parse DNS records: %w", err)
	}

	switch len(records) {
	case 0:
		return "", nil
	case 1:
		return records[0].ID, nil
	default:
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		return "", &AmbiguousRecordError{Hostname: hostname, IDs: ids}
	}
}

// DeleteDNSRecord deletes a DNS record by id
func (c *Client) DeleteDNSRecord(ctx context.Context, recordID string) error {
	path := fmt.Sprintf("%s/%s", c.dnsPath(), url.PathEscape(recordID))
	_, err := c.doRequest(ctx, "delete CNAME record", http.MethodDelete, path, nil)
	return err
}
