package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/rackcheck/internal/models"
)

// Aggregate merges lane results into a report. Results are ordered location,
// inventory in input order, then technical, regardless of completion order.
// IsValid is set here and nowhere else.
func Aggregate(results []LaneResult) *models.ValidationReport {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b LaneResult) int {
		return a.Kind.rank() - b.Kind.rank()
	})

	report := &models.ValidationReport{
		Warnings:              []string{},
		Suggestions:           []string{},
		TechnicalRequirements: []string{},
		DatacenterContext:     []models.ScoredDocument{},
		TechnicalContext:      []string{},
	}

	for _, r := range ordered {
		switch r.Kind {
		case LaneLocation:
			report.DatacenterContext = appendEvidence(report.DatacenterContext, r.Evidence)
			if r.Err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Location validation error: %v", r.Err))
				continue
			}
			if v := r.Location; v != nil && v.HasError {
				report.Warnings = append(report.Warnings, orDefault(v.Warning, "Location mismatch reported for the requested switch and pod"))
				report.Suggestions = appendNonBlank(report.Suggestions, v.Suggestion)
			}

		case LaneInventory:
			report.DatacenterContext = appendEvidence(report.DatacenterContext, r.Evidence)
			if r.Err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Inventory validation error (%s): %v", r.Part, r.Err))
				continue
			}
			if v := r.Inventory; v != nil && !v.Available {
				report.Warnings = append(report.Warnings, orDefault(v.Warning, fmt.Sprintf("%s is not available in inventory", r.Part)))
				report.Suggestions = appendNonBlank(report.Suggestions, v.Alternative)
			}

		case LaneTechnical:
			if r.Err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Technical RAG error: %v", r.Err))
				continue
			}
			if v := r.Technical; v != nil {
				report.TechnicalRequirements = appendNonBlank(report.TechnicalRequirements, v.Answer)
				report.TechnicalContext = append(report.TechnicalContext, v.Sources...)
			}
		}
	}

	report.IsValid = len(report.Warnings) == 0
	return report
}

// appendEvidence adds hits to the report without their embeddings, which
// mean nothing to report consumers.
func appendEvidence(dst, hits []models.ScoredDocument) []models.ScoredDocument {
	for _, h := range hits {
		h.Document.Embedding = nil
		dst = append(dst, h)
	}
	return dst
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func appendNonBlank(list []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return list
	}
	return append(list, s)
}
