package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/rackcheck/internal/config"
	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// Options tunes retrieval and scheduling of a validation run.
type Options struct {
	Retrieval          config.Retrieval
	LaneTimeout        time.Duration
	PipelineTimeout    time.Duration
	PriorityTimeout    time.Duration
	MaxConcurrentLanes int
}

// OptionsFrom copies the pipeline settings out of cfg.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Retrieval:          cfg.Retrieval,
		LaneTimeout:        cfg.LaneTimeout,
		PipelineTimeout:    cfg.PipelineTimeout,
		PriorityTimeout:    cfg.PriorityTimeout,
		MaxConcurrentLanes: cfg.MaxConcurrentLanes,
	}
}

// DefaultOptions returns the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Retrieval:          config.DefaultRetrieval(),
		LaneTimeout:        30 * time.Second,
		PipelineTimeout:    90 * time.Second,
		PriorityTimeout:    30 * time.Second,
		MaxConcurrentLanes: 8,
	}
}

// Validator fans a ticket out into lanes and aggregates their verdicts.
type Validator struct {
	store       knowledge.Store
	interpreter *Interpreter
	resolver    *TechnicalResolver
	opts        Options
	collector   *metrics.Collector
	logger      *slog.Logger
}

// NewValidator creates a validator. Collector may be nil.
func NewValidator(store knowledge.Store, interpreter *Interpreter, resolver *TechnicalResolver, opts Options, collector *metrics.Collector, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrentLanes <= 0 {
		opts.MaxConcurrentLanes = 1
	}
	return &Validator{
		store:       store,
		interpreter: interpreter,
		resolver:    resolver,
		opts:        opts,
		collector:   collector,
		logger:      logger,
	}
}

// Validate runs every planned lane concurrently and waits for all of them.
func (v *Validator) Validate(ctx context.Context, runID string, ticket models.TicketFacts, observe LaneObserver) *models.ValidationReport {
	return Aggregate(v.RunLanes(ctx, runID, ticket, observe))
}

// RunLanes executes the lanes of ticket and returns one result per lane in
// PlanLanes order. A failing lane never cancels its siblings.
func (v *Validator) RunLanes(ctx context.Context, runID string, ticket models.TicketFacts, observe LaneObserver) []LaneResult {
	lanes := PlanLanes(ticket)
	results := make([]LaneResult, len(lanes))
	logger := v.logger.With("run_id", runID)

	var observeMu sync.Mutex
	notify := func(i int) {
		if observe == nil {
			return
		}
		r := results[i]
		observeMu.Lock()
		defer observeMu.Unlock()
		observe(LaneEvent{
			RunID:    runID,
			Lane:     r.Lane,
			Index:    i,
			Total:    len(lanes),
			Skipped:  r.Skipped,
			Err:      r.Err,
			Duration: r.Duration,
		})
	}

	// Plain Group: no derived context, so one lane's error cannot cancel others.
	var g errgroup.Group
	g.SetLimit(v.opts.MaxConcurrentLanes)
	for i, lane := range lanes {
		g.Go(func() error {
			results[i] = v.runLane(ctx, lane, ticket, logger)
			notify(i)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (v *Validator) runLane(ctx context.Context, lane Lane, ticket models.TicketFacts, logger *slog.Logger) (result LaneResult) {
	start := time.Now()
	result.Lane = lane

	laneCtx := ctx
	if v.opts.LaneTimeout > 0 {
		var cancel context.CancelFunc
		laneCtx, cancel = context.WithTimeout(ctx, v.opts.LaneTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("lane panicked: %v", rec)
		}
		result.Duration = time.Since(start)
		v.collector.RecordTiming(metrics.OpLane, result.Duration)
		if result.Err != nil {
			v.collector.RecordFailure(metrics.OpLane)
		}

		attrs := []any{"lane", lane.Kind, "duration_ms", result.Duration.Milliseconds()}
		if lane.Part != "" {
			attrs = append(attrs, "part", lane.Part)
		}
		switch {
		case result.Err != nil:
			logger.Warn("lane failed", append(attrs, "error", result.Err)...)
		case result.Skipped:
			logger.Debug("lane skipped, no evidence", attrs...)
		default:
			logger.Debug("lane complete", attrs...)
		}
	}()

	switch lane.Kind {
	case LaneLocation:
		v.locationLane(laneCtx, ticket, &result)
	case LaneInventory:
		v.inventoryLane(laneCtx, lane.Part, &result)
	case LaneTechnical:
		v.technicalLane(laneCtx, ticket.Device, &result)
	default:
		result.Err = fmt.Errorf("unknown lane kind %q", lane.Kind)
	}
	return result
}

func (v *Validator) locationLane(ctx context.Context, ticket models.TicketFacts, result *LaneResult) {
	hits, err := v.store.Query(ctx, models.Query{
		Text:      fmt.Sprintf("switch %s location pod %s", ticket.Switch, ticket.Pod),
		Threshold: v.opts.Retrieval.LocationThreshold,
		TopK:      v.opts.Retrieval.LocationTopK,
		Types:     []models.DocumentType{models.DocSwitchStatus, models.DocTopology},
	})
	if err != nil {
		result.Err = err
		return
	}
	if len(hits) == 0 {
		result.Skipped = true
		return
	}
	result.Evidence = hits

	verdict, err := v.interpreter.Location(ctx, ticket, hits[0])
	if err != nil {
		result.Err = err
		return
	}
	result.Location = verdict
}

func (v *Validator) inventoryLane(ctx context.Context, part string, result *LaneResult) {
	hits, err := v.store.Query(ctx, models.Query{
		Text:      "inventory availability " + part,
		Threshold: v.opts.Retrieval.InventoryThreshold,
		TopK:      v.opts.Retrieval.InventoryTopK,
		Types:     []models.DocumentType{models.DocInventory},
	})
	if err != nil {
		result.Err = err
		return
	}
	if len(hits) == 0 {
		result.Skipped = true
		return
	}
	result.Evidence = hits

	verdict, err := v.interpreter.Inventory(ctx, part, hits[0])
	if err != nil {
		result.Err = err
		return
	}
	result.Inventory = verdict
}

func (v *Validator) technicalLane(ctx context.Context, device string, result *LaneResult) {
	verdict, err := v.resolver.Resolve(ctx, device+" installation requirements power cables specifications")
	if err != nil {
		result.Err = err
		return
	}
	result.Technical = verdict
}
