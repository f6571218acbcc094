package models

// TicketFacts is the structured work-ticket produced by the intake chat.
// It is read-only for the duration of one pipeline run.
type TicketFacts struct {
	Device        string   `json:"device" yaml:"device"`
	Pod           string   `json:"pod" yaml:"pod"`
	Rack          string   `json:"rack" yaml:"rack"`
	Switch        string   `json:"switch" yaml:"switch"`
	Ports         []string `json:"ports" yaml:"ports"`
	RequiredParts []string `json:"required_parts" yaml:"required_parts"`
	Action        string   `json:"action" yaml:"action"`
	Description   string   `json:"description" yaml:"description"`
}
