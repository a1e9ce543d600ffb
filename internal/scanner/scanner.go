// Package scanner finds work item cards on a board page and performs
// estimate edits against Jira.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/tuannvm/jira-estimate/internal/jira"
	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
)

// ErrUnknownTicket is returned for keys that are not on the scanned page
var ErrUnknownTicket = errors.New("unknown ticket")

// Scanner owns the page snapshot and the ticket registry built from it
type Scanner struct {
	source  page.Source
	doc     *page.Document
	updater jira.EstimateUpdater

	mu       sync.RWMutex
	registry *Registry
}

// New creates a scanner reading from source and writing through updater
func New(source page.Source, updater jira.EstimateUpdater) *Scanner {
	return &Scanner{
		source:   source,
		doc:      page.NewDocument(),
		updater:  updater,
		registry: NewRegistry(),
	}
}

// Document returns the page snapshot the scanner reads
func (s *Scanner) Document() *page.Document {
	return s.doc
}

// Rescan fetches the page, replaces the snapshot and rebuilds the registry
func (s *Scanner) Rescan(ctx context.Context) (int, error) {
	html, err := s.source.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch page: %w", err)
	}
	if err := s.doc.Replace(html); err != nil {
		return 0, err
	}
	return s.Scan(), nil
}

// Scan rebuilds the registry from the current snapshot without fetching
func (s *Scanner) Scan() int {
	var reg *Registry
	s.doc.Read(func(snap page.Snapshot) {
		reg = Discover(snap)
	})

	s.mu.Lock()
	s.registry = reg
	s.mu.Unlock()
	return reg.Len()
}

// Tickets returns the scanned tickets in discovery order
func (s *Scanner) Tickets() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Tickets()
}

// Ticket returns one scanned ticket
func (s *Scanner) Ticket(key string) (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Get(key)
}

// ListTickets rescans the page and returns the wire form of every ticket
func (s *Scanner) ListTickets(ctx context.Context) ([]models.TicketInfo, error) {
	if _, err := s.Rescan(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Infos(), nil
}

// UpdateEstimate writes a new estimate for a scanned ticket. The registry is
// only updated after Jira accepted the write. A nil value clears the estimate.
func (s *Scanner) UpdateEstimate(ctx context.Context, issueKey string, value *float64) error {
	s.mu.RLock()
	known := s.registry.Has(issueKey)
	s.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownTicket, issueKey)
	}

	if _, err := s.updater.UpdateEstimate(ctx, issueKey, value); err != nil {
		log.Warnf("Estimate update for %s failed: %v", issueKey, err)
		return err
	}

	s.mu.Lock()
	s.registry.SetEstimate(issueKey, value)
	s.mu.Unlock()
	return nil
}

// Element resolves the card element of a ticket in the given snapshot. It
// fails once the snapshot has been replaced since the last scan.
func (s *Scanner) Element(snap page.Snapshot, issueKey string) (*goquery.Selection, bool) {
	t, ok := s.Ticket(issueKey)
	if !ok {
		return nil, false
	}
	return snap.Resolve(t.Ref)
}
