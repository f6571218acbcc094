package models

import "testing"

func TestContainsAnyFold(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		keywords []string
		want     bool
	}{
		{"exact", []string{"production down"}, []string{"down"}, true},
		{"case folded", []string{"Critical OUTAGE"}, []string{"outage"}, true},
		{"no match", []string{"new install"}, []string{"urgent", "down"}, false},
		{"empty texts", nil, []string{"urgent"}, false},
		{"second text", []string{"rack 42U", "urgent fix"}, []string{"urgent"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContainsAnyFold(tt.texts, tt.keywords...)
			if got != tt.want {
				t.Errorf("ContainsAnyFold(%v, %v) = %v, want %v", tt.texts, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestHasInventoryIssue(t *testing.T) {
	r := &ValidationReport{Warnings: []string{"Switch mismatch", "Inventory validation error (x): boom"}}
	if !r.HasInventoryIssue() {
		t.Error("expected inventory issue")
	}
	r = &ValidationReport{Warnings: []string{"Switch mismatch"}}
	if r.HasInventoryIssue() {
		t.Error("unexpected inventory issue")
	}
}

func TestTicketFields(t *testing.T) {
	ticket := TicketFacts{
		Device:        "H100",
		Ports:         []string{"25"},
		RequiredParts: []string{"3m_DAC_cable"},
		Description:   "prod outage",
	}
	fields := ticket.Fields()
	if !ContainsAnyFold(fields, "outage") {
		t.Error("description should be included")
	}
	if !ContainsAnyFold(fields, "3m_DAC") {
		t.Error("required parts should be included")
	}
}
