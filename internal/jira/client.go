package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	v2 "github.com/ctreminiom/go-atlassian/v2/jira/v2"

	"github.com/tuannvm/jira-estimate/internal/config"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// Client represents a Jira API client
type Client struct {
	config   *config.Config
	api      *v2.Client
	resolver *FieldResolver
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	cookies    []*http.Cookie
	resolver   *FieldResolver
}

// WithHTTPClient sets the HTTP client used for Jira calls
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithCookies attaches browser session cookies to every Jira request
func WithCookies(cookies []*http.Cookie) Option {
	return func(o *clientOptions) { o.cookies = append(o.cookies, cookies...) }
}

// WithFieldResolver overrides the estimate field resolver
func WithFieldResolver(r *FieldResolver) Option {
	return func(o *clientOptions) { o.resolver = r }
}

// NewClient creates a new Jira client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if cfg.JiraSessionCookie != "" {
		o.cookies = append(o.cookies, parseCookieHeader(cfg.JiraSessionCookie)...)
	}

	hc := o.httpClient
	if hc == nil {
		timeout := cfg.JiraTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if cfg.JiraBearerToken != "" || len(o.cookies) > 0 {
		wrapped := *hc
		wrapped.Transport = &sessionTransport{
			base:    hc.Transport,
			bearer:  cfg.JiraBearerToken,
			cookies: o.cookies,
		}
		hc = &wrapped
	}

	api, err := v2.New(hc, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}
	if cfg.JiraUsername != "" && cfg.JiraAPIToken != "" {
		api.Auth.SetBasicAuth(cfg.JiraUsername, cfg.JiraAPIToken)
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = NewFieldResolver(cfg.CommonFieldIDs, cfg.DefaultFieldID, cfg.AllowsDefaultField())
	}

	return &Client{
		config:   cfg,
		api:      api,
		resolver: resolver,
	}, nil
}

// GetIssueWithEditMeta fetches an issue with its edit metadata expanded and
// returns the raw JSON representation.
func (c *Client) GetIssueWithEditMeta(ctx context.Context, issueKey string) ([]byte, int, error) {
	endpoint := fmt.Sprintf("rest/api/2/issue/%s?expand=editmeta", url.PathEscape(issueKey))

	req, err := c.api.NewRequest(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.api.Call(req, nil)
	if err != nil {
		if res != nil {
			return nil, res.Code, fmt.Errorf("failed to get issue: status %d, body: %s", res.Code, res.Bytes.String())
		}
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}

	log.Debugf("Fetched %s with edit metadata (%d bytes)", issueKey, res.Bytes.Len())
	return res.Bytes.Bytes(), res.Code, nil
}

// UpdateFields issues a partial update carrying only the given fields
func (c *Client) UpdateFields(ctx context.Context, issueKey string, fields map[string]interface{}) (int, string, error) {
	endpoint := fmt.Sprintf("rest/api/2/issue/%s", url.PathEscape(issueKey))
	payload := struct {
		Fields map[string]interface{} `json:"fields"`
	}{Fields: fields}

	req, err := c.api.NewRequest(ctx, http.MethodPut, endpoint, "", payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.api.Call(req, nil)
	if err != nil {
		if res != nil {
			return res.Code, res.Bytes.String(), fmt.Errorf("failed to update issue: status %d", res.Code)
		}
		return 0, "", fmt.Errorf("failed to send request: %w", err)
	}
	return res.Code, "", nil
}

// BrowseURL returns the URL of the issue page
func (c *Client) BrowseURL(issueKey string) string {
	return BrowseURL(c.config.JiraBaseURL, issueKey)
}

// BrowseURL returns the issue page URL for the given base URL
func BrowseURL(baseURL, issueKey string) string {
	return strings.TrimRight(baseURL, "/") + "/browse/" + issueKey
}

// sessionTransport adds bearer and cookie credentials to outgoing requests
type sessionTransport struct {
	base    http.RoundTripper
	bearer  string
	cookies []*http.Cookie
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.bearer != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+t.bearer)
	}
	for _, cookie := range t.cookies {
		req.AddCookie(cookie)
	}
	if len(t.cookies) > 0 {
		// Cookie sessions are subject to Jira's XSRF check on writes
		req.Header.Set("X-Atlassian-Token", "no-check")
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// parseCookieHeader parses a "name=value; name2=value2" cookie header
func parseCookieHeader(header string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}
