package editor

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
)

// FillResult reports the outcome of a bulk fill
type FillResult struct {
	Updated []string
	Failed  map[string]error
}

// FillUnestimated sets value on every ticket without an estimate, one edit at
// a time. Failed edits are collected and do not stop the run; cancelling ctx
// stops it before the next edit.
func (e *Editor) FillUnestimated(ctx context.Context, value float64) (FillResult, error) {
	result := FillResult{Failed: make(map[string]error)}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return result, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}

	var keys []string
	for _, t := range e.Tickets() {
		if t.Estimate == nil {
			keys = append(keys, t.Key)
		}
	}
	if len(keys) == 0 {
		return result, nil
	}

	pace := e.opts.BulkPace
	if pace <= 0 {
		pace = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(pace), 1)

	log.Infof("Filling %d unestimated tickets with %s", len(keys), models.FormatDays(value))
	for _, key := range keys {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}
		v := value
		if err := e.SetEstimate(ctx, key, &v); err != nil {
			result.Failed[key] = err
			continue
		}
		result.Updated = append(result.Updated, key)
	}
	return result, nil
}
