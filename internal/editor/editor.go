// Package editor holds the control surface state: the mode machine, the last
// ticket list and the edit operations that drive the page scanner.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/mode"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
	"github.com/tuannvm/jira-estimate/internal/scanner"
	"github.com/tuannvm/jira-estimate/internal/watch"
)

// ErrInvalidValue is returned for estimate input that is not a non-negative number
var ErrInvalidValue = errors.New("invalid estimate value")

// Backend is the page scanner as seen from the control surface
type Backend interface {
	ListTickets(ctx context.Context) ([]models.TicketInfo, error)
	UpdateEstimate(ctx context.Context, issueKey string, value *float64) error
}

// Presenter mirrors the editor state into the board page
type Presenter interface {
	Mount()
	Clear()
	UpdateTicket(issueKey string)
	OpenPicker(issueKey string, current *float64)
	ClosePicker()
	Toast(message, kind string)
	ClearToast()
}

// Toast is a transient notification
type Toast struct {
	Message string
	Kind    string
}

// Options tune the editor
type Options struct {
	Presets        []float64
	RescanDebounce time.Duration
	BulkPace       time.Duration
	ToastDuration  time.Duration

	// WatchSource and WatchInterval enable page polling while active
	WatchSource   page.Source
	WatchInterval time.Duration
}

// Editor is the single context object behind every user action
type Editor struct {
	backend   Backend
	presenter Presenter
	opts      Options
	rescan    *watch.Debouncer
	watcher   *watch.Watcher
	changes   chan struct{}

	mu         sync.Mutex
	machine    mode.Machine
	tickets    []models.TicketInfo
	toast      Toast
	toastTimer *time.Timer
	lastErr    error
}

// New creates an idle editor. presenter may be nil when the page is remote.
func New(backend Backend, presenter Presenter, opts Options) *Editor {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if len(opts.Presets) == 0 {
		opts.Presets = []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 3}
	}
	if opts.RescanDebounce <= 0 {
		opts.RescanDebounce = 100 * time.Millisecond
	}
	if opts.ToastDuration <= 0 {
		opts.ToastDuration = 2 * time.Second
	}

	e := &Editor{
		backend:   backend,
		presenter: presenter,
		opts:      opts,
		changes:   make(chan struct{}, 1),
	}
	e.rescan = watch.NewDebouncer(opts.RescanDebounce, func() {
		if err := e.Refresh(context.Background()); err != nil {
			log.Warnf("Rescan failed: %v", err)
		}
	})
	if opts.WatchSource != nil {
		e.watcher = watch.NewWatcher(opts.WatchSource, opts.WatchInterval, e.ScheduleRescan)
	}
	return e
}

// Presets returns the picker preset values
func (e *Editor) Presets() []float64 {
	return e.opts.Presets
}

// Machine returns the current mode state
func (e *Editor) Machine() mode.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine
}

// Tickets returns the last scanned ticket list
func (e *Editor) Tickets() []models.TicketInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TicketInfo, len(e.tickets))
	copy(out, e.tickets)
	return out
}

// Totals summarizes the last scanned ticket list
func (e *Editor) Totals() models.Totals {
	return models.Summarize(e.Tickets())
}

// CurrentToast returns the visible notification, if any
func (e *Editor) CurrentToast() (Toast, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toast, e.toast.Message != ""
}

// LastError returns the error of the last failed refresh
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Changes signals whenever the editor state changed
func (e *Editor) Changes() <-chan struct{} {
	return e.changes
}

// Refresh asks the scanner for the current tickets. While active the page
// markers are remounted, and an open picker survives if its ticket is still
// on the page.
func (e *Editor) Refresh(ctx context.Context) error {
	tickets, err := e.backend.ListTickets(ctx)

	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()

	e.lastErr = err
	if err != nil {
		return fmt.Errorf("failed to list tickets: %w", err)
	}
	e.tickets = tickets

	if e.machine.Is(mode.Idle) {
		return nil
	}
	e.presenter.Mount()
	if e.machine.Is(mode.PickerOpen) {
		if t, ok := e.find(e.machine.PickerKey); ok {
			e.presenter.OpenPicker(t.Key, t.Estimate)
		} else {
			_ = e.machine.Apply(mode.Event{Type: mode.Cancel})
		}
	}
	return nil
}

// ScheduleRescan requests a debounced refresh
func (e *Editor) ScheduleRescan() {
	e.rescan.Trigger()
}

// Toggle switches between idle and active
func (e *Editor) Toggle(ctx context.Context) error {
	e.mu.Lock()
	wasIdle := e.machine.Is(mode.Idle)
	e.mu.Unlock()

	if wasIdle {
		return e.activate(ctx)
	}
	return e.deactivate(mode.Event{Type: mode.Toggle})
}

// CloseMode leaves the active mode
func (e *Editor) CloseMode() error {
	return e.deactivate(mode.Event{Type: mode.Close})
}

// Cancel closes the picker if one is open, otherwise leaves the active mode
func (e *Editor) Cancel() error {
	if _, err := e.closePicker(mode.Cancel); err == nil {
		return nil
	}
	return e.deactivate(mode.Event{Type: mode.Cancel})
}

// ClickOutside closes the picker
func (e *Editor) ClickOutside() error {
	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()
	if err := e.machine.Apply(mode.Event{Type: mode.ClickOutside}); err != nil {
		return err
	}
	e.presenter.ClosePicker()
	return nil
}

// SelectCard opens the picker for a ticket, replacing any open picker
func (e *Editor) SelectCard(issueKey string) error {
	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()

	t, ok := e.find(issueKey)
	if !ok {
		return fmt.Errorf("%w: %s", scanner.ErrUnknownTicket, issueKey)
	}
	if err := e.machine.Apply(mode.Event{Type: mode.SelectCard, Key: issueKey}); err != nil {
		return err
	}
	e.presenter.OpenPicker(t.Key, t.Estimate)
	return nil
}

// ChooseValue applies a preset to the ticket of the open picker
func (e *Editor) ChooseValue(ctx context.Context, value float64) error {
	key, err := e.closePicker(mode.ChooseValue)
	if err != nil {
		return err
	}
	return e.SetEstimate(ctx, key, &value)
}

// SubmitCustom parses free text input and applies it to the ticket of the
// open picker. Invalid input leaves the picker open and sends nothing.
func (e *Editor) SubmitCustom(ctx context.Context, input string) error {
	value, err := ParseValue(input)
	if err != nil {
		return err
	}
	key, err := e.closePicker(mode.SubmitCustom)
	if err != nil {
		return err
	}
	return e.SetEstimate(ctx, key, value)
}

// SetEstimate writes an estimate for one ticket. A nil value clears it. The
// write is not cancelled by ctx once issued.
func (e *Editor) SetEstimate(ctx context.Context, issueKey string, value *float64) error {
	err := e.backend.UpdateEstimate(context.WithoutCancel(ctx), issueKey, value)

	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()

	if err != nil {
		log.Warnf("Failed to update %s: %v", issueKey, err)
		e.showToast(fmt.Sprintf("✗ Failed to update %s", issueKey), "error")
		return err
	}

	for i := range e.tickets {
		if e.tickets[i].Key == issueKey {
			e.tickets[i].Estimate = nil
			if value != nil {
				e.tickets[i].Estimate = models.Float64Ptr(*value)
			}
		}
	}
	if !e.machine.Is(mode.Idle) {
		e.presenter.UpdateTicket(issueKey)
	}
	e.showToast(fmt.Sprintf("✓ %s → %s", issueKey, models.FormatEstimate(value)), "success")
	return nil
}

// Shutdown stops background polling and timers
func (e *Editor) Shutdown() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	e.rescan.Cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.toastTimer != nil {
		e.toastTimer.Stop()
	}
}

// ParseValue parses estimate input. "none", "-" and "null" clear the
// estimate; anything else must be a finite non-negative number.
func ParseValue(input string) (*float64, error) {
	s := strings.TrimSpace(input)
	switch strings.ToLower(s) {
	case "none", "-", "null":
		return nil, nil
	case "":
		return nil, fmt.Errorf("%w: empty input", ErrInvalidValue)
	}
	s = strings.TrimSuffix(s, "d")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValue, input)
	}
	return &v, nil
}

func (e *Editor) activate(ctx context.Context) error {
	e.mu.Lock()
	err := e.machine.Apply(mode.Event{Type: mode.Toggle})
	e.mu.Unlock()
	if err != nil {
		return err
	}
	log.Infof("Entering estimate mode")

	if err := e.Refresh(ctx); err != nil {
		// An unreadable page still leaves the mode active with an empty list
		log.Warnf("Initial scan failed: %v", err)
		e.mu.Lock()
		e.presenter.Mount()
		e.mu.Unlock()
	}
	if e.watcher != nil {
		e.watcher.Start(context.WithoutCancel(ctx))
	}
	return nil
}

func (e *Editor) deactivate(ev mode.Event) error {
	e.mu.Lock()
	if err := e.machine.Apply(ev); err != nil {
		e.mu.Unlock()
		return err
	}
	e.presenter.Clear()
	e.mu.Unlock()
	e.notify()

	log.Infof("Exiting estimate mode")
	if e.watcher != nil {
		e.watcher.Stop()
	}
	return nil
}

// closePicker applies a picker closing event and returns the picker's key. It
// fails unless a picker is open.
func (e *Editor) closePicker(t mode.EventType) (string, error) {
	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()

	if !e.machine.Is(mode.PickerOpen) {
		return "", fmt.Errorf("%w: no picker is open", mode.ErrInvalidTransition)
	}
	key := e.machine.PickerKey
	if err := e.machine.Apply(mode.Event{Type: t}); err != nil {
		return "", err
	}
	e.presenter.ClosePicker()
	return key, nil
}

// find looks a ticket up in the last list. Callers hold e.mu.
func (e *Editor) find(issueKey string) (models.TicketInfo, bool) {
	for _, t := range e.tickets {
		if t.Key == issueKey {
			return t, true
		}
	}
	return models.TicketInfo{}, false
}

// showToast replaces the notification and schedules its removal. Callers hold e.mu.
func (e *Editor) showToast(message, kind string) {
	e.toast = Toast{Message: message, Kind: kind}
	// Markers stay off the page while idle
	if !e.machine.Is(mode.Idle) {
		e.presenter.Toast(message, kind)
	}

	if e.toastTimer != nil {
		e.toastTimer.Stop()
	}
	e.toastTimer = time.AfterFunc(e.opts.ToastDuration, func() {
		e.mu.Lock()
		if e.toast.Message == message {
			e.toast = Toast{}
			if !e.machine.Is(mode.Idle) {
				e.presenter.ClearToast()
			}
		}
		e.mu.Unlock()
		e.notify()
	})
}

func (e *Editor) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

type nopPresenter struct{}

func (nopPresenter) Mount() {}
func (nopPresenter) Clear() {}
func (nopPresenter) UpdateTicket(string) {}
func (nopPresenter) OpenPicker(string, *float64) {}
func (nopPresenter) ClosePicker() {}
func (nopPresenter) Toast(string, string) {}
func (nopPresenter) ClearToast() {}
