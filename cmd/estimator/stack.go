package main

import (
	"context"
	"fmt"
	"io"

	"github.com/tuannvm/jira-estimate/internal/config"
	"github.com/tuannvm/jira-estimate/internal/editor"
	"github.com/tuannvm/jira-estimate/internal/jira"
	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/overlay"
	"github.com/tuannvm/jira-estimate/internal/page"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

// stack is the local page scanner with everything it talks to
type stack struct {
	source  page.Source
	jira    *jira.Client
	scanner *scanner.Scanner
	overlay *overlay.Overlay
	editor  *editor.Editor
}

// newStack wires the page source, the Jira client and the scanner. When the
// page comes from a browser profile its session cookies authenticate the
// Jira calls.
func newStack(ctx context.Context, cfg *config.Config, watch bool) (*stack, error) {
	source, err := page.NewSource(cfg)
	if err != nil {
		return nil, err
	}

	var opts []jira.Option
	if cs, ok := source.(page.CookieSource); ok {
		cookies, err := cs.Cookies(ctx)
		if err != nil {
			log.Warnf("Could not read browser session cookies: %v", err)
		} else {
			log.Debugf("Using %d browser session cookies for Jira", len(cookies))
			opts = append(opts, jira.WithCookies(cookies))
		}
	}

	jc, err := jira.NewClient(cfg, opts...)
	if err != nil {
		closeSource(source)
		return nil, err
	}

	s := scanner.New(source, jc)
	ov := overlay.New(s.Document(), s, cfg.EstimatePresets)
	if live, ok := source.(page.LiveView); ok {
		ov.Mirror(live)
	}

	editorOpts := editor.Options{
		Presets:        cfg.EstimatePresets,
		RescanDebounce: cfg.RescanDebounce,
		BulkPace:       cfg.BulkPace,
		ToastDuration:  cfg.ToastDuration,
	}
	if watch {
		editorOpts.WatchSource = source
		editorOpts.WatchInterval = cfg.RescanInterval
	}

	return &stack{
		source:  source,
		jira:    jc,
		scanner: s,
		overlay: ov,
		editor:  editor.New(s, ov, editorOpts),
	}, nil
}

func (s *stack) Close() {
	s.editor.Shutdown()
	closeSource(s.source)
}

func closeSource(source page.Source) {
	if c, ok := source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warnf("Failed to close page source: %v", err)
		}
	}
}

// refresh scans the page once and fails when the page could not be read
func (s *stack) refresh(ctx context.Context) error {
	if err := s.editor.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to scan page: %w", err)
	}
	return nil
}
