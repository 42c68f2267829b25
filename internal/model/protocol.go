package model

import (
	"fmt"
	"strings"
)

type ProtocolCategory struct {
	Name  string `json:"name"`
	Focus string `json:"focus"`
}

// Categories drive the multi-pass generation loop. Order matters: the
// generator iterates this slice as-is so repeated runs over identical
// input produce the same protocol sequence.
var Categories = []ProtocolCategory{
	{Name: "diagnostic", Focus: "diagnostic protocols and assessment procedures"},
	{Name: "treatment", Focus: "treatment protocols and intervention procedures"},
	{Name: "emergency", Focus: "emergency protocols and critical care procedures"},
	{Name: "prevention", Focus: "preventive protocols and prophylactic measures"},
}

type ProtocolStep struct {
	StepNumber    int    `json:"step"`
	ActionText    string `json:"text"`
	Explanation   string `json:"explanation"`
	CitationIndex int    `json:"citation"`
}

type Citation struct {
	ID      int    `json:"id"`
	Source  string `json:"source"`
	Excerpt string `json:"excerpt"`
}

type GeneratedProtocol struct {
	ProtocolID string         `json:"protocol_id"`
	Title      string         `json:"title"`
	Steps      []ProtocolStep `json:"steps"`
	Citations  []Citation     `json:"citations"`
	SourceType string         `json:"source_type"`
	OwnerID    string         `json:"owner_id"`
	Category   string         `json:"category"`
	// Incomplete marks a protocol that still failed the completeness
	// check after all retry attempts. It is kept (not dropped) but must
	// stay distinguishable from a fully validated result.
	Incomplete bool  `json:"incomplete,omitempty"`
	CreatedAt  int64 `json:"created_at"`
}

// NewGeneratedProtocol builds a protocol record and rejects shapes that
// violate the step/citation invariant outright: a non-empty step list
// requires at least one citation entry. Zero steps is a valid protocol
// meaning "nothing relevant found".
func NewGeneratedProtocol(id, title, owner, category string, steps []ProtocolStep, citations []Citation, createdAt int64) (*GeneratedProtocol, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = TitleCase(category) + " Protocol"
	}
	if len(steps) > 0 && len(citations) == 0 {
		return nil, fmt.Errorf("protocol %q has %d steps but no citations", title, len(steps))
	}
	return &GeneratedProtocol{
		ProtocolID: id,
		Title:      title,
		Steps:      steps,
		Citations:  citations,
		SourceType: "user",
		OwnerID:    owner,
		Category:   category,
		CreatedAt:  createdAt,
	}, nil
}

// TitleCase uppercases the first letter only. Category names are plain
// ASCII words so no locale handling is needed.
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
