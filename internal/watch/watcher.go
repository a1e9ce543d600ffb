package watch

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/page"
)

// Fingerprint is the BLAKE3 digest of a page snapshot
type Fingerprint [32]byte

// FingerprintOf hashes raw page HTML
func FingerprintOf(html string) Fingerprint {
	return blake3.Sum256([]byte(html))
}

// Watcher polls a page source and calls onChange when its content changes.
// The first poll after Start records a baseline and never reports a change.
type Watcher struct {
	source   page.Source
	interval time.Duration
	onChange func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a stopped watcher
func NewWatcher(source page.Source, interval time.Duration, onChange func()) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{source: source, interval: interval, onChange: onChange}
}

// Start begins polling. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop ends polling and waits for the poll loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the watcher is polling
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		last   Fingerprint
		primed bool
	)
	poll := func() {
		html, err := w.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Debugf("Page poll failed: %v", err)
			}
			return
		}
		fp := FingerprintOf(html)
		changed := primed && fp != last
		last, primed = fp, true
		if changed {
			w.onChange()
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
