package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// ErrPriorityAssignment marks a failed priority call. Assign always recovers
// from it with the default assignment.
var ErrPriorityAssignment = errors.New("priority assignment failure")

const (
	defaultPriority       = models.P3
	defaultDurationMinute = 30
	defaultAction         = "INSTALL"

	// maxDurationMinutes bounds model estimates so rounding cannot overflow int.
	maxDurationMinutes = math.MaxInt32
)

var productionKeywords = []string{"production", "down", "outage", "critical", "urgent"}

// DefaultAssignment is the fallback used when the reasoning call fails.
func DefaultAssignment(cause error) *models.PriorityAssignment {
	return &models.PriorityAssignment{
		Priority:                 defaultPriority,
		Justification:            fmt.Sprintf("default priority assigned due to error: %v", cause),
		EstimatedDurationMinutes: defaultDurationMinute,
	}
}

// PriorityAssigner classifies ticket urgency from the ticket and its report.
type PriorityAssigner struct {
	llm     llm.Completer
	timeout time.Duration
	logger  *slog.Logger
}

// NewPriorityAssigner creates an assigner. A zero timeout means only the
// caller's deadline applies.
func NewPriorityAssigner(c llm.Completer, timeout time.Duration, logger *slog.Logger) *PriorityAssigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriorityAssigner{llm: c, timeout: timeout, logger: logger}
}

type priorityResponse struct {
	Priority      string  `json:"priority"`
	Justification string  `json:"justification"`
	Duration      float64 `json:"estimated_duration_minutes"`
}

// Assign never fails: any error yields DefaultAssignment.
func (p *PriorityAssigner) Assign(ctx context.Context, ticket models.TicketFacts, report *models.ValidationReport) *models.PriorityAssignment {
	if report == nil {
		report = &models.ValidationReport{}
	}
	assignment, err := p.assign(ctx, ticket, report)
	if err != nil {
		p.logger.Warn("priority assignment failed, using default",
			"priority", defaultPriority.String(),
			"error", err)
		return DefaultAssignment(err)
	}
	return assignment
}

func (p *PriorityAssigner) assign(ctx context.Context, ticket models.TicketFacts, report *models.ValidationReport) (*models.PriorityAssignment, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := llm.CompleteJSON[priorityResponse](ctx, p.llm, llm.Request{
		Prompt:      priorityPrompt(ticket, report),
		Temperature: 0.3,
	}, "priority", "justification", "estimated_duration_minutes")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPriorityAssignment, err)
	}

	priority, err := models.ParsePriority(resp.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrPriorityAssignment, llm.ErrReasoningParse, err)
	}
	if math.IsNaN(resp.Duration) || resp.Duration < 0 || resp.Duration > maxDurationMinutes {
		return nil, fmt.Errorf("%w: %w: invalid duration %v", ErrPriorityAssignment, llm.ErrReasoningParse, resp.Duration)
	}

	return &models.PriorityAssignment{
		Priority:                 priority,
		Justification:            strings.TrimSpace(resp.Justification),
		EstimatedDurationMinutes: int(math.Round(resp.Duration)),
	}, nil
}

// priorityFlags are the heuristics embedded in the priority prompt.
type priorityFlags struct {
	inventoryIssue   bool
	troubleshooting  bool
	productionImpact bool
}

func derivePriorityFlags(ticket models.TicketFacts, report *models.ValidationReport) priorityFlags {
	return priorityFlags{
		inventoryIssue:   report.HasInventoryIssue(),
		troubleshooting:  strings.Contains(strings.ToLower(ticket.Action), "troubleshoot"),
		productionImpact: models.ContainsAnyFold(append(ticket.Fields(), report.Warnings...), productionKeywords...),
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func priorityPrompt(ticket models.TicketFacts, report *models.ValidationReport) string {
	action := ticket.Action
	if action == "" {
		action = defaultAction
	}
	warnings := "None"
	if len(report.Warnings) > 0 {
		warnings = strings.Join(report.Warnings, ", ")
	}
	workType := "New Installation"
	flags := derivePriorityFlags(ticket, report)
	if flags.troubleshooting {
		workType = "Troubleshooting"
	}

	var b strings.Builder
	b.WriteString(`You are a data center operations expert. Assign a priority level (P0-P4) to this ticket.

Priority definitions:
- P0 (Critical): production systems down, major outage, immediate safety risk
- P1 (High): production degraded, critical system at risk, urgent maintenance
- P2 (Medium): important but not urgent, scheduled maintenance, planned upgrades
- P3 (Low): standard installations, routine tasks, non-urgent requests
- P4 (Very Low): nice-to-have, documentation, low-priority improvements

`)
	fmt.Fprintf(&b, "Ticket details:\n")
	fmt.Fprintf(&b, "- Action: %s\n", action)
	fmt.Fprintf(&b, "- Device: %s\n", ticket.Device)
	fmt.Fprintf(&b, "- Location: Pod %s, Rack %s\n", ticket.Pod, ticket.Rack)
	fmt.Fprintf(&b, "- Required parts: %s\n\n", strings.Join(ticket.RequiredParts, ", "))
	fmt.Fprintf(&b, "Validation results:\n")
	fmt.Fprintf(&b, "- Warnings: %s\n", warnings)
	fmt.Fprintf(&b, "- Inventory issues: %s\n\n", yesNo(flags.inventoryIssue))
	fmt.Fprintf(&b, "Context clues:\n")
	fmt.Fprintf(&b, "- New installation or troubleshooting? %s\n", workType)
	fmt.Fprintf(&b, "- Production impact mentioned? %s\n\n", yesNo(flags.productionImpact))
	b.WriteString(`Respond in JSON:
{
  "priority": "P0" | "P1" | "P2" | "P3" | "P4",
  "justification": "1-2 sentence explanation of the priority",
  "estimated_duration_minutes": <integer estimate of how long the work takes>
}`)
	return b.String()
}
