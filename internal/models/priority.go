package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority is an ordinal urgency level. P0 is the most urgent.
type Priority int

const (
	P0 Priority = iota // production down, outage, safety risk
	P1                 // production degraded
	P2                 // scheduled maintenance, planned upgrades
	P3                 // standard installations, routine tasks
	P4                 // nice-to-have
)

// String returns the "P<n>" form.
func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return fmt.Sprintf("P%d", int(p))
}

// Valid reports whether p is within P0..P4.
func (p Priority) Valid() bool {
	return p >= P0 && p <= P4
}

// MoreUrgentThan reports whether p outranks other.
func (p Priority) MoreUrgentThan(other Priority) bool {
	return p < other
}

// ParsePriority parses "P0".."P4" (case-insensitive, surrounding space ignored).
func ParsePriority(s string) (Priority, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 || s[0] != 'P' || s[1] < '0' || s[1] > '4' {
		return 0, fmt.Errorf("invalid priority %q: want P0-P4", s)
	}
	return Priority(s[1] - '0'), nil
}

// MarshalJSON encodes the priority as its "P<n>" string.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("marshal priority: %d out of range", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a "P<n>" string.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PriorityAssignment is the urgency classification for a validated ticket.
type PriorityAssignment struct {
	Priority                 Priority `json:"priority"`
	Justification            string   `json:"justification"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes"`
}
