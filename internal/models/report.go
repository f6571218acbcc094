package models

// LocationVerdict is the reasoning service's judgement of the ticket's
// switch/pod claim against topology records.
type LocationVerdict struct {
	HasError   bool   `json:"has_error"`
	Warning    string `json:"warning"`
	Suggestion string `json:"suggestion"`
}

// InventoryVerdict is the availability judgement for one required part.
// An empty Alternative means no alternative is known.
type InventoryVerdict struct {
	Available   bool   `json:"available"`
	Quantity    int    `json:"quantity"`
	Warning     string `json:"warning"`
	Alternative string `json:"alternative,omitempty"`
}

// TechnicalVerdict is a cited answer synthesized from manual chunks.
// Sources holds unique "source, pg N" labels in first-seen order.
type TechnicalVerdict struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// ValidationReport is the merged outcome of all validation lanes.
// IsValid is true exactly when Warnings is empty.
type ValidationReport struct {
	IsValid               bool             `json:"is_valid"`
	Warnings              []string         `json:"warnings"`
	Suggestions           []string         `json:"suggestions"`
	TechnicalRequirements []string         `json:"technical_requirements"`
	DatacenterContext     []ScoredDocument `json:"datacenter_context"`
	TechnicalContext      []string         `json:"technical_context"`
}

// HasInventoryIssue reports whether any warning mentions inventory.
func (r *ValidationReport) HasInventoryIssue() bool {
	for _, w := range r.Warnings {
		if containsFold(w, "inventory") {
			return true
		}
	}
	return false
}
