package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// Lister fetches the event snapshot for a calendar month.
type Lister interface {
	ListMonth(ctx context.Context, year int, month time.Month) ([]models.CalendarEvent, error)
}

// FetchResult is the outcome of a month fetch. Err is nil on success;
// cancelled fetches produce no result at all.
type FetchResult struct {
	Year   int
	Month  time.Month
	Events []models.CalendarEvent
	Err    error
}

// Coordinator issues month fetches with at most one in-flight request honored
// per view. Starting a new fetch cancels the previous one, and a response is
// only delivered if it belongs to the most recently issued request: a slow
// response for an older month can never overwrite a newer month's view.
type Coordinator struct {
	lister Lister
	logger *slog.Logger
	apply  func(FetchResult)

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// NewCoordinator creates a new fetch coordinator. The apply callback receives
// the winning fetch result; it is invoked serially and must not call back
// into the coordinator.
func NewCoordinator(lister Lister, logger *slog.Logger, apply func(FetchResult)) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if apply == nil {
		apply = func(FetchResult) {}
	}

	return &Coordinator{
		lister: lister,
		logger: logger,
		apply:  apply,
	}
}

// Fetch starts a fetch for the given month, cancelling any fetch still in
// flight. It returns immediately; the result is delivered through the apply
// callback.
func (c *Coordinator) Fetch(ctx context.Context, year int, month time.Month) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	c.logger.Debug("Fetching month", "year", year, "month", int(month), "seq", seq)

	go func() {
		defer cancel()

		events, err := c.lister.ListMonth(fetchCtx, year, month)

		c.mu.Lock()
		defer c.mu.Unlock()

		if seq != c.seq {
			// A newer fetch superseded this one while it was in flight.
			c.logger.Debug("Discarding superseded fetch result", "seq", seq, "current", c.seq)
			return
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				// Cancellation is not an error, just a discarded request.
				c.logger.Debug("Fetch cancelled", "seq", seq)
				return
			}
			c.logger.Error("Fetch failed", "year", year, "month", int(month), "error", err)
			c.apply(FetchResult{Year: year, Month: month, Err: err})
			return
		}

		c.apply(FetchResult{Year: year, Month: month, Events: events})
	}()
}

// Cancel aborts any in-flight fetch. Used on view teardown.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}
