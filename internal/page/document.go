// Package page holds the board page snapshot the scanner reads and the
// overlay mutates, plus the sources that produce it.
package page

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements inserted by the overlay carry OwnedAttr. Scanning ignores them and
// everything below them.
const (
	OwnedAttr     = "data-jee-owned"
	OwnedSelector = "[data-jee-owned], [data-jee-owned] *"
)

// Document is a mutable HTML snapshot of the board page. Every Replace bumps
// the generation so references taken from an older snapshot stop resolving.
type Document struct {
	mu         sync.RWMutex
	doc        *goquery.Document
	generation uint64
}

// Snapshot is the view of a Document handed to Read and Write callbacks
type Snapshot struct {
	*goquery.Document
	Generation uint64
}

// Ref is a non-owning reference to an element of one generation
type Ref struct {
	Generation uint64
	node       *html.Node
}

// NewDocument returns an empty document at generation zero
func NewDocument() *Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &Document{doc: doc}
}

// Parse builds a document from raw HTML
func Parse(raw string) (*Document, error) {
	d := NewDocument()
	if err := d.Replace(raw); err != nil {
		return nil, err
	}
	return d, nil
}

// Replace swaps in a new snapshot parsed from raw
func (d *Document) Replace(raw string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	d.generation++
	return nil
}

// Generation returns the current snapshot generation
func (d *Document) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// Read runs fn with shared access to the current snapshot
func (d *Document) Read(fn func(Snapshot)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(Snapshot{Document: d.doc, Generation: d.generation})
}

// Write runs fn with exclusive access to the current snapshot. Mutations made
// here do not change the generation.
func (d *Document) Write(fn func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(Snapshot{Document: d.doc, Generation: d.generation})
}

// HTML renders the current snapshot, markers included
func (d *Document) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.OuterHtml(d.doc.Selection)
}

// RefOf returns a reference to the first node of sel in this snapshot
func (s Snapshot) RefOf(sel *goquery.Selection) Ref {
	if sel == nil || sel.Length() == 0 {
		return Ref{}
	}
	return Ref{Generation: s.Generation, node: sel.Get(0)}
}

// Resolve dereferences ref. It fails when ref belongs to another generation
// or when the element has since been detached.
func (s Snapshot) Resolve(ref Ref) (*goquery.Selection, bool) {
	if ref.node == nil || ref.Generation != s.Generation {
		return nil, false
	}
	root := s.Document.Get(0)
	n := ref.node
	for n.Parent != nil {
		n = n.Parent
	}
	if n != root {
		return nil, false
	}
	return s.Document.FindNodes(ref.node), true
}

// IsZero reports whether the reference points nowhere
func (r Ref) IsZero() bool {
	return r.node == nil
}
