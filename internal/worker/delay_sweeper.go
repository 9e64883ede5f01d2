// Package worker runs the background sweep that keeps delay overlays
// current and reroutes tickets without an agent in rotation, without
// waiting for inbound traffic.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/observability"
	"github.com/spec-kit/support-engine/internal/repository"
	"github.com/spec-kit/support-engine/internal/service"
)

// DelaySweeper periodically re-evaluates every open ticket against the
// response threshold and retries assignment for tickets left without an
// agent.
type DelaySweeper struct {
	tickets    repository.TicketRepository
	lifecycle  *service.TicketService
	assignment *service.AssignmentService
	metrics    *observability.Metrics
	interval   time.Duration
	logger     *zap.Logger
}

// NewDelaySweeper constructs the sweeper.
func NewDelaySweeper(tickets repository.TicketRepository, lifecycle *service.TicketService, assignment *service.AssignmentService, metrics *observability.Metrics, interval time.Duration, logger *zap.Logger) *DelaySweeper {
	return &DelaySweeper{
		tickets:    tickets,
		lifecycle:  lifecycle,
		assignment: assignment,
		metrics:    metrics,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until the context is cancelled, sweeping on each tick.
func (w *DelaySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("delay sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delay sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Per-ticket failures are logged and do not abort
// the pass.
func (w *DelaySweeper) Sweep(ctx context.Context) {
	open, err := w.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if err != nil {
		w.logger.Error("delay sweep failed to list open tickets", zap.Error(err))
		return
	}

	flipped := 0
	for i := range open {
		before := open[i].IsDelayed
		ticket, err := w.lifecycle.EvaluateDelay(ctx, open[i].ID)
		if err != nil {
			w.logger.Error("delay evaluation failed",
				zap.String("ticket_id", open[i].ID), zap.Error(err))
			continue
		}
		if ticket.IsDelayed != before {
			flipped++
			w.metrics.RecordEngine("delay_flips")
		}
	}

	assigned, err := w.assignment.AssignOrphans(ctx)
	if err != nil {
		w.logger.Error("orphan assignment retry failed", zap.Error(err))
	}

	w.metrics.RecordEngine("sweeps")
	if flipped > 0 || assigned > 0 {
		w.logger.Info("delay sweep completed",
			zap.Int("open_tickets", len(open)),
			zap.Int("delay_flips", flipped),
			zap.Int("orphans_assigned", assigned))
	}
}
