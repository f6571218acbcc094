package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// urgentBelow is the first priority that is not flagged as urgent.
const urgentBelow = models.P2

// renderReport formats a validation report and its priority for the terminal.
func renderReport(theme Theme, report *models.ValidationReport, assignment *models.PriorityAssignment) string {
	var b strings.Builder

	if report == nil {
		report = &models.ValidationReport{}
	}
	if report.IsValid {
		b.WriteString(theme.completedStyle().Render("✓ Ticket is valid"))
	} else {
		b.WriteString(theme.errorStyle().Render(fmt.Sprintf("✗ Ticket has %d warning(s)", len(report.Warnings))))
	}
	b.WriteString("\n")

	writeSection(&b, theme.warningStyle().Render("Warnings:"), report.Warnings)
	writeSection(&b, "Suggestions:", report.Suggestions)
	writeSection(&b, "Technical requirements:", report.TechnicalRequirements)
	writeSection(&b, theme.hintStyle().Render("Sources:"), report.TechnicalContext)

	if len(report.DatacenterContext) > 0 && verbose {
		b.WriteString("\nDatacenter context:\n")
		for _, d := range report.DatacenterContext {
			fmt.Fprintf(&b, "  [%.2f] %s: %s\n", d.Score, d.Document.Type, truncate(d.Document.Content, 80))
		}
	}

	if assignment != nil {
		b.WriteString("\n")
		label := fmt.Sprintf("Priority %s", assignment.Priority)
		if assignment.Priority.MoreUrgentThan(urgentBelow) {
			b.WriteString(theme.errorStyle().Render(label + " urgent"))
		} else {
			b.WriteString(theme.statusStyle().Render(label))
		}
		fmt.Fprintf(&b, " (est. %d min)\n", assignment.EstimatedDurationMinutes)
		if assignment.Justification != "" {
			fmt.Fprintf(&b, "  %s\n", assignment.Justification)
		}
	}
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  • %s\n", item)
	}
}

// printDocument prints one knowledge document, with its score for search hits.
func printDocument(doc models.KnowledgeDocument, score *float64) {
	if score != nil {
		fmt.Printf("[%.3f] ", *score)
	}
	fmt.Printf("%s (%s)\n", doc.ID, doc.Type)
	fmt.Printf("  %s\n", truncate(doc.Content, 120))
	if len(doc.Metadata) > 0 {
		fmt.Printf("  Metadata: %v\n", doc.Metadata)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// printStats displays in-process timing statistics for the last command.
func printStats(s metrics.Snapshot) {
	fmt.Printf("Pipeline Statistics (in-memory, this run)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", s.UptimeSeconds)

	for _, row := range s.Rows() {
		fmt.Printf("\n%s:\n", row.Op)
		printOpStats(row.Stats)
		printTokenStats(row.Stats)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms", op.Count, op.TotalTimeMs)
	if op.Failures > 0 {
		fmt.Printf(", Failed: %d", op.Failures)
	}
	fmt.Println()
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Println()
}
