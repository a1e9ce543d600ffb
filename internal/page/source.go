package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/tuannvm/jira-estimate/internal/config"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// Source produces the current HTML of the board page
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// CookieSource is implemented by sources that hold the user's session
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// StaticSource serves fixed HTML. Set replaces the content.
type StaticSource struct {
	mu   sync.RWMutex
	html string
}

// NewStaticSource returns a source serving html
func NewStaticSource(html string) *StaticSource {
	return &StaticSource{html: html}
}

// Set replaces the served HTML
func (s *StaticSource) Set(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

// Fetch returns the current HTML
func (s *StaticSource) Fetch(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.html, nil
}

// FileSource reads a saved copy of the board page
type FileSource struct {
	Path string
}

// Fetch reads the file
func (f FileSource) Fetch(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read page file: %w", err)
	}
	return string(data), nil
}

// HTTPSource fetches the board page with the user's session cookies
type HTTPSource struct {
	URL     string
	Client  *http.Client
	Cookies []*http.Cookie
}

// Fetch issues a GET for the page
func (h *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for _, cookie := range h.Cookies {
		req.AddCookie(cookie)
	}
	req.Header.Set("Accept", "text/html")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}
	return string(body), nil
}

// NewSource builds the page source selected by the configuration
func NewSource(cfg *config.Config) (Source, error) {
	if cfg.PageSource != config.SourceFile && !LooksLikeJira(cfg.PageURL) {
		log.Warnf("%s does not look like a Jira page; no tickets may be found", cfg.PageURL)
	}
	switch cfg.PageSource {
	case config.SourceFile:
		if cfg.PageFile == "" {
			return nil, fmt.Errorf("PAGE_FILE is required for the file page source")
		}
		return FileSource{Path: cfg.PageFile}, nil
	case config.SourceHTTP:
		log.Infof("Fetching board page over HTTP from %s", cfg.PageURL)
		return &HTTPSource{
			URL:     cfg.PageURL,
			Client:  &http.Client{Timeout: cfg.JiraTimeout},
			Cookies: parseCookies(cfg.JiraSessionCookie),
		}, nil
	case config.SourceBrowser, "":
		return NewBrowserSource(cfg.PageURL, cfg.BrowserProfileDir, cfg.BrowserHeadless), nil
	default:
		return nil, fmt.Errorf("unknown page source %q", cfg.PageSource)
	}
}

func parseCookies(header string) []*http.Cookie {
	if header == "" {
		return nil
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		log.Warnf("Ignoring malformed session cookie: %v", err)
		return nil
	}
	return cookies
}

// jiraURLMarkers are URL fragments found on Jira Cloud and self-hosted boards
var jiraURLMarkers = []string{
	"atlassian.net",
	"/secure/RapidBoard.jspa",
	"/browse/",
	"/projects/",
	"/jira/",
	"jira.",
}

// LooksLikeJira reports whether a page URL appears to belong to a Jira site
func LooksLikeJira(rawURL string) bool {
	for _, marker := range jiraURLMarkers {
		if strings.Contains(rawURL, marker) {
			return true
		}
	}
	return false
}
