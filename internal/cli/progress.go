package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/rackcheck/internal/models"
	"github.com/raphaelgruber/rackcheck/internal/service"
)

// errInterrupted is returned when the user aborts a run from the progress UI.
var errInterrupted = errors.New("validation interrupted")

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// laneEventMsg carries a finished lane from the pipeline goroutine.
type laneEventMsg service.LaneEvent

// runDoneMsg carries the pipeline outcome.
type runDoneMsg struct {
	report     *models.ValidationReport
	assignment *models.PriorityAssignment
}

// progressModel is the bubbletea model for a validation run.
type progressModel struct {
	lanes      []service.Lane
	finished   []service.LaneEvent
	progress   progress.Model
	theme      Theme
	report     *models.ValidationReport
	assignment *models.PriorityAssignment
	done       bool
	quitting   bool
}

func newProgressModel(ticket models.TicketFacts) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		lanes:    service.PlanLanes(ticket),
		progress: prog,
		theme:    defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case laneEventMsg:
		m.finished = append(m.finished, service.LaneEvent(msg))
		return m, nil

	case runDoneMsg:
		m.report = msg.report
		m.assignment = msg.assignment
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nValidation cancelled.\n")
	}
	if m.done {
		// The report is printed after the program exits.
		return ""
	}

	total := len(m.lanes)
	var pct float64
	if total > 0 {
		pct = float64(len(m.finished)) / float64(total)
	}

	var b strings.Builder
	phase := "[validating]"
	if total > 0 && len(m.finished) == total {
		phase = "[prioritizing]"
	}
	fmt.Fprintf(&b, "%s %s %d/%d lanes\n",
		m.theme.statusStyle().Render(phase), m.progress.ViewAs(pct), len(m.finished), total)

	for _, e := range m.finished {
		line := fmt.Sprintf("  %-8s %s (%dms)", laneStatus(e), e.Lane.Label(), e.Duration.Milliseconds())
		switch laneStatus(e) {
		case "failed":
			b.WriteString(m.theme.errorStyle().Render(line))
		case "skipped":
			b.WriteString(m.theme.hintStyle().Render(line))
		default:
			b.WriteString(m.theme.completedStyle().Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to cancel"))
	b.WriteString("\n")
	return b.String()
}

// RunLaneProgress runs the pipeline while rendering lane progress. Cancelling
// from the UI aborts the run and returns errInterrupted.
func RunLaneProgress(ctx context.Context, pipeline *service.Pipeline, ticket models.TicketFacts) (*models.ValidationReport, *models.PriorityAssignment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(ticket))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		report, assignment := pipeline.Run(ctx, ticket, service.WithLaneObserver(func(e service.LaneEvent) {
			p.Send(laneEventMsg(e))
		}))
		p.Send(runDoneMsg{report: report, assignment: assignment})
	}()

	finalModel, err := p.Run()
	cancel()
	// Wait so no lane outlives the command; the pipeline honors cancellation.
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
	}
	if err != nil {
		return nil, nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok || m.quitting || !m.done {
		return nil, nil, errInterrupted
	}
	return m.report, m.assignment, nil
}
