package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/playwright-community/playwright-go"

	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// BrowserSource reads the live board page from a Chromium instance running
// on the user's persistent profile, so the Jira login session is reused.
type BrowserSource struct {
	URL        string
	ProfileDir string
	Headless   bool

	mu        sync.Mutex
	pw        *playwright.Playwright
	context   playwright.BrowserContext
	page      playwright.Page
	bodyClass string
}

// NewBrowserSource returns a source that lazily launches the browser
func NewBrowserSource(url, profileDir string, headless bool) *BrowserSource {
	return &BrowserSource{URL: url, ProfileDir: profileDir, Headless: headless}
}

func (b *BrowserSource) start() error {
	if b.page != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	bc, err := pw.Chromium.LaunchPersistentContext(b.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: &b.Headless,
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := bc.NewPage()
	if err != nil {
		bc.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	waitUntil := playwright.WaitUntilState("networkidle")
	if _, err := page.Goto(b.URL, playwright.PageGotoOptions{WaitUntil: &waitUntil}); err != nil {
		bc.Close()
		_ = pw.Stop()
		return fmt.Errorf("navigation failed: %w", err)
	}
	log.Infof("Opened board page %s in browser profile %s", b.URL, b.ProfileDir)

	b.pw = pw
	b.context = bc
	b.page = page
	return nil
}

// Fetch returns the current DOM of the live page without overlay markers
func (b *BrowserSource) Fetch(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.start(); err != nil {
		return "", err
	}
	result, err := b.page.Evaluate(stripScript, map[string]interface{}{
		"owned":     OwnedAttr,
		"bodyClass": b.bodyClass,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	content, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected page content type %T", result)
	}
	return content, nil
}

// Render shows the overlay markers in the live page. It is a no-op until the
// page has been opened by Fetch or Cookies.
func (b *BrowserSource) Render(ctx context.Context, markers []Marker, bodyClass string, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if b.page == nil {
		return nil
	}
	b.bodyClass = bodyClass

	items := make([]interface{}, 0, len(markers))
	for _, m := range markers {
		items = append(items, map[string]interface{}{"issueKey": m.IssueKey, "html": m.HTML})
	}
	shown, err := b.page.Evaluate(renderScript, map[string]interface{}{
		"owned":     OwnedAttr,
		"markers":   items,
		"bodyClass": bodyClass,
		"active":    active,
	})
	if err != nil {
		return fmt.Errorf("failed to render markers: %w", err)
	}
	log.Debugf("Rendered %v of %d markers in the live page", shown, len(markers))
	return nil
}

// Cookies returns the Jira session cookies held by the browser profile
func (b *BrowserSource) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.start(); err != nil {
		return nil, err
	}
	browserCookies, err := b.context.Cookies(b.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(browserCookies))
	for _, c := range browserCookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

// Close shuts the browser down
func (b *BrowserSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.context == nil {
		return nil
	}
	if err := b.context.Close(); err != nil {
		log.Warnf("Failed to close browser context: %v", err)
	}
	err := b.pw.Stop()
	b.pw, b.context, b.page = nil, nil, nil
	return err
}

var (
	_ CookieSource = (*BrowserSource)(nil)
	_ LiveView     = (*BrowserSource)(nil)
)
