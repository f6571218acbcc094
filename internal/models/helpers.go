// Package models defines the data structures shared by the rackcheck pipeline.
package models

import "strings"

// containsFold reports whether substr is within s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsAnyFold reports whether any of the texts contains any of the
// keywords, ignoring case.
func ContainsAnyFold(texts []string, keywords ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, k := range keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				return true
			}
		}
	}
	return false
}

// Fields returns every free-text field of the ticket, including list entries.
func (t TicketFacts) Fields() []string {
	fields := []string{t.Device, t.Pod, t.Rack, t.Switch, t.Action, t.Description}
	fields = append(fields, t.Ports...)
	return append(fields, t.RequiredParts...)
}
