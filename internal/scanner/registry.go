package scanner

import (
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
)

// Ticket is one work item found on the board
type Ticket struct {
	Key       string
	Summary   string
	IssueType models.IssueType
	Estimate  *float64
	KeySource string
	Ref       page.Ref
}

// Info returns the wire form of the ticket
func (t Ticket) Info() models.TicketInfo {
	return models.TicketInfo{
		Key:       t.Key,
		Summary:   t.Summary,
		Estimate:  copyEstimate(t.Estimate),
		IssueType: t.IssueType,
	}
}

// Registry maps issue keys to tickets in discovery order. It is rebuilt from
// scratch on every scan and is not safe for concurrent use.
type Registry struct {
	order   []string
	tickets map[string]*Ticket
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{tickets: make(map[string]*Ticket)}
}

// Add registers t unless its key is already known. The first discovery wins.
func (r *Registry) Add(t Ticket) bool {
	if _, exists := r.tickets[t.Key]; exists {
		return false
	}
	r.order = append(r.order, t.Key)
	r.tickets[t.Key] = &t
	return true
}

// Has reports whether key is registered
func (r *Registry) Has(key string) bool {
	_, ok := r.tickets[key]
	return ok
}

// Get returns a copy of the ticket for key
func (r *Registry) Get(key string) (Ticket, bool) {
	t, ok := r.tickets[key]
	if !ok {
		return Ticket{}, false
	}
	out := *t
	out.Estimate = copyEstimate(t.Estimate)
	return out, true
}

// SetEstimate replaces the estimate of one ticket
func (r *Registry) SetEstimate(key string, value *float64) bool {
	t, ok := r.tickets[key]
	if !ok {
		return false
	}
	t.Estimate = copyEstimate(value)
	return true
}

// Len returns the number of tickets
func (r *Registry) Len() int {
	return len(r.order)
}

// Tickets returns copies of all tickets in discovery order
func (r *Registry) Tickets() []Ticket {
	out := make([]Ticket, 0, len(r.order))
	for _, key := range r.order {
		t, _ := r.Get(key)
		out = append(out, t)
	}
	return out
}

// Infos returns the wire form of all tickets in discovery order
func (r *Registry) Infos() []models.TicketInfo {
	out := make([]models.TicketInfo, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.tickets[key].Info())
	}
	return out
}

func copyEstimate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
