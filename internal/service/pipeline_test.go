package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

func datacenterDocs() []seedDoc {
	return []seedDoc{
		{"switch-7b is installed in Pod_7, row C. Status: active.", models.DocSwitchStatus, map[string]any{"switch": "switch-7b", "pod": "Pod_7"}},
		{"switch-8b is installed in Pod_6. Status: active.", models.DocSwitchStatus, map[string]any{"switch": "switch-8b", "pod": "Pod_6"}},
		{"800G_OSFP_Transceiver quantity: 0, status: out_of_stock", models.DocInventory, map[string]any{"part": "800G_OSFP_Transceiver", "quantity": 0}},
		{"DAC_Cable_2m quantity: 0, status: out_of_stock", models.DocInventory, map[string]any{"part": "DAC_Cable_2m", "quantity": 0}},
		{"H100 requires four 16-pin power cables.", models.DocManualChunk, map[string]any{"source": "h100_manual.pdf", "page": 12}},
	}
}

func TestScenarioValidLocation(t *testing.T) {
	fake := &scriptedLLM{
		location: reply(`{"has_error": false, "warning": "", "suggestion": ""}`),
		priority: reply(`{"priority": "P3", "justification": "routine cabling", "estimated_duration_minutes": 20}`),
	}
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), nil, nil)

	report, assignment := p.Run(context.Background(), models.TicketFacts{
		Switch:        "switch-7b",
		Pod:           "Pod_7",
		RequiredParts: []string{},
	})

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.Suggestions)
	require.NotEmpty(t, report.DatacenterContext)
	assert.Equal(t, models.DocSwitchStatus, report.DatacenterContext[0].Document.Type)
	assert.Contains(t, report.DatacenterContext[0].Document.Content, "switch-7b")

	loc := fake.promptsContaining("location mismatch")
	require.Len(t, loc, 1)
	assert.Contains(t, loc[0].Prompt, "switch-7b is installed in Pod_7")
	assert.Empty(t, fake.promptsContaining("Is this part available"))

	assert.Equal(t, models.P3, assignment.Priority)
	assert.Equal(t, "routine cabling", assignment.Justification)
}

func TestScenarioOutOfStockPart(t *testing.T) {
	fake := &scriptedLLM{
		inventory: func(_ context.Context, req llm.Request) (string, error) {
			if strings.Contains(req.Prompt, "out_of_stock") {
				return `{"available": false, "quantity": 0, "warning": "800G_OSFP_Transceiver is out of stock in inventory"}`, nil
			}
			return `{"available": true, "quantity": 10, "warning": ""}`, nil
		},
		priority: reply(`{"priority": "P2", "justification": "blocked on parts", "estimated_duration_minutes": 60}`),
	}
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), nil, nil)

	report, assignment := p.Run(context.Background(), models.TicketFacts{
		RequiredParts: []string{"800G_OSFP_Transceiver"},
	})

	assert.False(t, report.IsValid)
	assert.Equal(t, []string{"800G_OSFP_Transceiver is out of stock in inventory"}, report.Warnings)
	assert.Empty(t, report.Suggestions)

	prio := fake.promptsContaining("Assign a priority")
	require.Len(t, prio, 1)
	assert.Contains(t, prio[0].Prompt, "- Inventory issues: Yes")
	assert.Equal(t, models.P2, assignment.Priority)
}

func TestLaneFailureIsolation(t *testing.T) {
	fake := &scriptedLLM{
		location: reply(`{"has_error": true, "warning": "switch-7b has no free ports in Pod_7", "suggestion": "Use switch-8b"}`),
		inventory: func(_ context.Context, req llm.Request) (string, error) {
			if strings.Contains(req.Prompt, "DAC_Cable_2m") {
				return `{"quantity": 0}`, nil
			}
			return `{"available": false, "quantity": 0, "warning": "800G out of stock", "alternative": "Use 400G optics"}`, nil
		},
		technical: fail(llm.ErrReasoningTransport),
	}
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), nil, nil)

	report, assignment := p.Run(context.Background(), models.TicketFacts{
		Device:        "H100_GPU",
		Switch:        "switch-7b",
		Pod:           "Pod_7",
		RequiredParts: []string{"DAC_Cable_2m", "800G_OSFP_Transceiver"},
	})

	require.Len(t, report.Warnings, 4)
	assert.Equal(t, "switch-7b has no free ports in Pod_7", report.Warnings[0])
	assert.True(t, strings.HasPrefix(report.Warnings[1], "Inventory validation error (DAC_Cable_2m): "), report.Warnings[1])
	assert.Contains(t, report.Warnings[1], `"available"`)
	assert.Equal(t, "800G out of stock", report.Warnings[2])
	assert.True(t, strings.HasPrefix(report.Warnings[3], "Technical RAG error: "), report.Warnings[3])
	assert.Equal(t, []string{"Use switch-8b", "Use 400G optics"}, report.Suggestions)
	assert.Empty(t, report.TechnicalRequirements)
	assert.False(t, report.IsValid)

	// Priority script missing: the assigner falls back without touching the report.
	assert.Equal(t, models.P3, assignment.Priority)
	assert.Len(t, report.Warnings, 4)
}

func TestLocationLaneSkippedWithoutEvidence(t *testing.T) {
	fake := &scriptedLLM{location: reply(`{"has_error": true, "warning": "should not appear"}`)}
	p := NewPipeline(newTestStore(t), fake, testOptions(), nil, nil)

	report, _ := p.Run(context.Background(), models.TicketFacts{Switch: "switch-7b", Pod: "Pod_7"})
	assert.True(t, report.IsValid)
	assert.Empty(t, fake.promptsContaining("location mismatch"))
}

func TestTechnicalLaneRequirements(t *testing.T) {
	fake := &scriptedLLM{technical: reply("Connect four 16-pin power cables (h100_manual.pdf, pg 12).")}
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), nil, nil)

	report, _ := p.Run(context.Background(), models.TicketFacts{Device: "H100_GPU"})
	assert.True(t, report.IsValid)
	assert.Equal(t, []string{"Connect four 16-pin power cables (h100_manual.pdf, pg 12)."}, report.TechnicalRequirements)
	assert.Equal(t, []string{"h100_manual.pdf, pg 12"}, report.TechnicalContext)

	reqs := fake.promptsContaining("Context from manuals")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Question: H100_GPU installation requirements power cables specifications")
}

func TestLaneTimeoutIsLaneFailure(t *testing.T) {
	fake := &scriptedLLM{
		location:  blockUntilDone,
		inventory: reply(`{"available": true, "quantity": 3, "warning": ""}`),
	}
	opts := testOptions()
	opts.LaneTimeout = 50 * time.Millisecond
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, opts, nil, nil)

	start := time.Now()
	report, _ := p.Run(context.Background(), models.TicketFacts{
		Switch:        "switch-7b",
		Pod:           "Pod_7",
		RequiredParts: []string{"800G_OSFP_Transceiver"},
	})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, report.Warnings, 1)
	assert.True(t, strings.HasPrefix(report.Warnings[0], "Location validation error: "))
	assert.Contains(t, report.Warnings[0], context.DeadlineExceeded.Error())
	assert.Len(t, fake.promptsContaining("Is this part available"), 1)
}

func TestCallerDeadlineHonored(t *testing.T) {
	fake := &scriptedLLM{location: blockUntilDone, priority: blockUntilDone}
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, assignment := p.Run(ctx, models.TicketFacts{Switch: "switch-7b", Pod: "Pod_7"})
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, report.IsValid)
	assert.Equal(t, models.P3, assignment.Priority)
	assert.Equal(t, 30, assignment.EstimatedDurationMinutes)
}

// barrierLLM blocks inventory calls until want of them are in flight.
type barrierLLM struct {
	want     int32
	inFlight atomic.Int32
	release  chan struct{}
	once     sync.Once
}

func (b *barrierLLM) Complete(ctx context.Context, _ llm.Request) (string, error) {
	if b.inFlight.Add(1) == b.want {
		b.once.Do(func() { close(b.release) })
	}
	select {
	case <-b.release:
		return `{"available": true, "quantity": 1, "warning": ""}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestInventoryLanesRunConcurrently(t *testing.T) {
	parts := []string{"800G_OSFP_Transceiver", "DAC_Cable_2m", "800G_OSFP_Transceiver"}
	fake := &barrierLLM{want: int32(len(parts)), release: make(chan struct{})}
	opts := testOptions()
	opts.LaneTimeout = time.Second
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, opts, nil, nil)

	report, _ := p.Run(context.Background(), models.TicketFacts{RequiredParts: parts})

	// Sequential execution would time out every lane waiting on the barrier.
	assert.Empty(t, report.Warnings)
	assert.True(t, report.IsValid)
}

func TestLaneObserver(t *testing.T) {
	fake := &scriptedLLM{
		location:  reply(`{"has_error": false}`),
		inventory: fail(llm.ErrReasoningTransport),
		technical: reply("ok"),
	}
	collector := metrics.NewCollector()
	p := NewPipeline(newTestStore(t, datacenterDocs()...), fake, testOptions(), collector, nil)

	var events []LaneEvent
	ticket := models.TicketFacts{
		Device:        "H100_GPU",
		Switch:        "switch-7b",
		Pod:           "Pod_7",
		RequiredParts: []string{"800G_OSFP_Transceiver", "Unknown_Part"},
	}
	_, _ = p.Run(context.Background(), ticket,
		WithRunID("run-1"),
		WithLaneObserver(func(e LaneEvent) { events = append(events, e) }))

	require.Len(t, events, 4)
	seen := map[int]LaneEvent{}
	for _, e := range events {
		assert.Equal(t, "run-1", e.RunID)
		assert.Equal(t, 4, e.Total)
		seen[e.Index] = e
	}
	require.Len(t, seen, 4)
	assert.Equal(t, LaneLocation, seen[0].Lane.Kind)
	assert.Error(t, seen[1].Err)
	assert.True(t, seen[2].Skipped, "unknown part has no inventory evidence")
	assert.Equal(t, LaneTechnical, seen[3].Lane.Kind)

	snap := collector.Snapshot()
	require.NotNil(t, snap.Lane)
	assert.Equal(t, int64(4), snap.Lane.Count)
	assert.Equal(t, int64(1), snap.Lane.Failures)
	require.NotNil(t, snap.Pipeline)
	assert.Equal(t, int64(1), snap.Pipeline.Count)
}
