package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawsence/procheck/internal/model"
)

func step(explanation string, citation int) model.ProtocolStep {
	return model.ProtocolStep{StepNumber: 1, ActionText: "act", Explanation: explanation, CitationIndex: citation}
}

func TestValidateEmptyChecklist(t *testing.T) {
	report := Validate(&ModelResponse{Title: "T"})
	require.True(t, report.Valid)
	require.Zero(t, report.TotalSteps)
}

func TestValidateMissingCitationsArray(t *testing.T) {
	report := Validate(&ModelResponse{
		Title:     "T",
		Checklist: []model.ProtocolStep{step("a sufficiently long explanation", 1)},
	})
	require.False(t, report.Valid)
	require.Contains(t, report.Reason, "citations")
}

func TestValidateIncompleteMajority(t *testing.T) {
	report := Validate(&ModelResponse{
		Title: "T",
		Checklist: []model.ProtocolStep{
			step("a sufficiently long explanation", 1),
			step("short", 1),
			step("a sufficiently long explanation", 0),
		},
		Citations: []string{"src"},
	})
	require.False(t, report.Valid)
	require.Equal(t, 2, report.IncompleteSteps)
}

func TestValidateIncompleteMinorityPasses(t *testing.T) {
	report := Validate(&ModelResponse{
		Title: "T",
		Checklist: []model.ProtocolStep{
			step("a sufficiently long explanation", 1),
			step("short", 1),
		},
		Citations: []string{"src"},
	})
	require.True(t, report.Valid)
	require.Equal(t, 1, report.IncompleteSteps)
}

func TestValidateExplanationBoundary(t *testing.T) {
	// Exactly the minimum length counts as complete; whitespace padding
	// does not.
	report := Validate(&ModelResponse{
		Title:     "T",
		Checklist: []model.ProtocolStep{step("0123456789", 1)},
		Citations: []string{"src"},
	})
	require.True(t, report.Valid)

	report = Validate(&ModelResponse{
		Title:     "T",
		Checklist: []model.ProtocolStep{step("   short   ", 1)},
		Citations: []string{"src"},
	})
	require.False(t, report.Valid)
}
