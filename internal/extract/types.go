// Package extract turns raw message content into structured demand fields.
// It fronts a generative-AI endpoint with a deterministic keyword fallback
// so a failed AI call never fails the conversational turn.
package extract

import "strings"

// Result carries the best-effort fields extracted from one piece of content.
// Empty fields mean "nothing learned"; the engine never overwrites a filled
// slot with an empty field.
type Result struct {
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category,omitempty"`
	AddressText    string  `json:"address,omitempty"`
	Neighborhood   string  `json:"neighborhood,omitempty"`
	Urgency        string  `json:"urgency,omitempty"`
	Transcript     string  `json:"transcript,omitempty"`
	SuggestedReply string  `json:"suggested_reply,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Empty reports whether the result carries no extracted field at all.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Description) == "" &&
		strings.TrimSpace(r.Category) == "" &&
		strings.TrimSpace(r.AddressText) == "" &&
		strings.TrimSpace(r.Neighborhood) == "" &&
		strings.TrimSpace(r.Transcript) == ""
}
