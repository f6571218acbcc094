// Package service implements ticket validation: concurrent retrieval lanes,
// verdict interpretation, aggregation and priority assignment.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// Pipeline validates a ticket and then assigns its priority.
type Pipeline struct {
	validator *Validator
	resolver  *TechnicalResolver
	priority  *PriorityAssigner
	timeout   time.Duration
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewPipeline wires the validation components over store and c.
// Collector may be nil.
func NewPipeline(store knowledge.Store, c llm.Completer, opts Options, collector *metrics.Collector, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := NewTechnicalResolver(store, c, opts.Retrieval.ManualThreshold, opts.Retrieval.ManualTopK, logger)
	return &Pipeline{
		validator: NewValidator(store, NewInterpreter(c), resolver, opts, collector, logger),
		resolver:  resolver,
		priority:  NewPriorityAssigner(c, opts.PriorityTimeout, logger),
		timeout:   opts.PipelineTimeout,
		collector: collector,
		logger:    logger,
	}
}

// Resolver returns the technical resolver for standalone questions.
func (p *Pipeline) Resolver() *TechnicalResolver {
	return p.resolver
}

type runOptions struct {
	observe LaneObserver
	runID   string
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithLaneObserver reports each lane as it reaches a terminal state.
func WithLaneObserver(fn LaneObserver) RunOption {
	return func(o *runOptions) { o.observe = fn }
}

// WithRunID sets the correlation id logged with the run.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Run validates ticket and assigns a priority. It never fails: lane errors
// become report warnings and priority errors become the default assignment.
func (p *Pipeline) Run(ctx context.Context, ticket models.TicketFacts, opts ...RunOption) (*models.ValidationReport, *models.PriorityAssignment) {
	ro := runOptions{}
	for _, o := range opts {
		o(&ro)
	}
	if ro.runID == "" {
		ro.runID = uuid.NewString()
	}

	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger := p.logger.With("run_id", ro.runID)
	logger.Info("validating ticket",
		"device", ticket.Device,
		"switch", ticket.Switch,
		"pod", ticket.Pod,
		"parts", len(ticket.RequiredParts))

	report := p.validator.Validate(ctx, ro.runID, ticket, ro.observe)
	assignment := p.priority.Assign(ctx, ticket, report)

	elapsed := time.Since(start)
	p.collector.RecordTiming(metrics.OpPipeline, elapsed)
	logger.Info("ticket validated",
		"is_valid", report.IsValid,
		"warnings", len(report.Warnings),
		"priority", assignment.Priority.String(),
		"duration_ms", elapsed.Milliseconds())

	return report, assignment
}
