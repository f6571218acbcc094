package service

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

const interpreterSystem = "You are a data center operations assistant. " +
	"Judge ticket claims strictly against the datacenter records provided. " +
	"Always answer with a single JSON object."

// Interpreter turns retrieval evidence into structured verdicts.
type Interpreter struct {
	llm llm.Completer
}

// NewInterpreter creates an interpreter backed by c.
func NewInterpreter(c llm.Completer) *Interpreter {
	return &Interpreter{llm: c}
}

// Location asks whether the ticket's switch and pod agree with record.
func (i *Interpreter) Location(ctx context.Context, ticket models.TicketFacts, record models.ScoredDocument) (*models.LocationVerdict, error) {
	prompt := fmt.Sprintf(`The technician wants to cable to %s in %s.

Datacenter records:
%s

Is there a location mismatch between the ticket and the records? If yes, suggest the correct switch.
Respond in JSON: {"has_error": bool, "warning": string, "suggestion": string}`,
		ticket.Switch, ticket.Pod, record.Document.Content)

	v, err := llm.CompleteJSON[models.LocationVerdict](ctx, i.llm, llm.Request{
		System: interpreterSystem,
		Prompt: prompt,
	}, "has_error")
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Inventory asks whether part is available according to record.
func (i *Interpreter) Inventory(ctx context.Context, part string, record models.ScoredDocument) (*models.InventoryVerdict, error) {
	prompt := fmt.Sprintf(`The technician needs: %s

Inventory status:
%s

Is this part available? If not, suggest an alternative.
Respond in JSON: {"available": bool, "quantity": int, "warning": string, "alternative": string}`,
		part, record.Document.Content)

	v, err := llm.CompleteJSON[models.InventoryVerdict](ctx, i.llm, llm.Request{
		System: interpreterSystem,
		Prompt: prompt,
	}, "available")
	if err != nil {
		return nil, err
	}
	return &v, nil
}
