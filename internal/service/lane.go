package service

import (
	"time"

	"github.com/raphaelgruber/rackcheck/internal/models"
)

// LaneKind identifies one of the independent validation checks.
type LaneKind string

const (
	LaneLocation  LaneKind = "location"
	LaneInventory LaneKind = "inventory"
	LaneTechnical LaneKind = "technical"
)

// rank orders lane kinds for aggregation.
func (k LaneKind) rank() int {
	switch k {
	case LaneLocation:
		return 0
	case LaneInventory:
		return 1
	default:
		return 2
	}
}

// Lane is one planned unit of validation work.
type Lane struct {
	Kind LaneKind
	Part string // set for inventory lanes
}

// Label is a short human name for the lane.
func (l Lane) Label() string {
	if l.Kind == LaneInventory {
		return string(l.Kind) + ":" + l.Part
	}
	return string(l.Kind)
}

// PlanLanes returns the lanes a ticket fans out into: location (when a
// switch or pod is claimed), one inventory lane per required part in input
// order, and technical when a device is named.
func PlanLanes(t models.TicketFacts) []Lane {
	lanes := make([]Lane, 0, len(t.RequiredParts)+2)
	if t.Switch != "" || t.Pod != "" {
		lanes = append(lanes, Lane{Kind: LaneLocation})
	}
	for _, part := range t.RequiredParts {
		lanes = append(lanes, Lane{Kind: LaneInventory, Part: part})
	}
	if t.Device != "" {
		lanes = append(lanes, Lane{Kind: LaneTechnical})
	}
	return lanes
}

// LaneResult is the terminal state of one lane: a verdict, a skip, or an
// error. Exactly one of the verdict fields is set on success.
type LaneResult struct {
	Lane
	Evidence  []models.ScoredDocument
	Location  *models.LocationVerdict
	Inventory *models.InventoryVerdict
	Technical *models.TechnicalVerdict
	// Skipped is set when retrieval found nothing to judge.
	Skipped  bool
	Err      error
	Duration time.Duration
}

// LaneEvent reports a lane reaching its terminal state.
type LaneEvent struct {
	RunID    string
	Lane     Lane
	Index    int // position in PlanLanes order
	Total    int
	Skipped  bool
	Err      error
	Duration time.Duration
}

// LaneObserver receives lane events. Calls are serialized.
type LaneObserver func(LaneEvent)
