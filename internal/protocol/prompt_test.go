package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawsence/procheck/internal/model"
)

func TestBuildPromptContainsSourceAndFocus(t *testing.T) {
	prompt := BuildPrompt("chunk body text", "guide.md", model.Categories[0], "")
	require.Contains(t, prompt, "chunk body text")
	require.Contains(t, prompt, "guide.md")
	require.Contains(t, prompt, model.Categories[0].Focus)
	require.Contains(t, prompt, "OUTPUT FORMAT")
	require.NotContains(t, prompt, "ADDITIONAL USER INSTRUCTIONS")
}

func TestBuildPromptCustomInstructions(t *testing.T) {
	prompt := BuildPrompt("chunk", "guide.md", model.Categories[1], "focus on pediatric dosing")
	require.Contains(t, prompt, "ADDITIONAL USER INSTRUCTIONS")
	require.Contains(t, prompt, "focus on pediatric dosing")
}

func TestBuildRetryPrompt(t *testing.T) {
	base := BuildPrompt("chunk", "guide.md", model.Categories[0], "")
	require.Equal(t, base, BuildRetryPrompt(base, 0))

	retry := BuildRetryPrompt(base, 1)
	require.Contains(t, retry, base)
	require.Contains(t, retry, "CRITICAL")
}

func TestBuildRegenPromptUsesExcerpts(t *testing.T) {
	original := model.GeneratedProtocol{
		Title:     "Burn Care",
		Category:  "treatment",
		Steps:     []model.ProtocolStep{{ActionText: "Cool the burn"}},
		Citations: []model.Citation{{ID: 1, Source: "burns.md", Excerpt: "Cool the burn under running water."}},
	}
	prompt := BuildRegenPrompt(original, "use metric units")
	require.Contains(t, prompt, "Burn Care")
	require.Contains(t, prompt, "burns.md")
	require.Contains(t, prompt, "Cool the burn under running water.")
	require.Contains(t, prompt, "use metric units")
}

func TestBuildRegenPromptWithoutExcerpts(t *testing.T) {
	original := model.GeneratedProtocol{
		Title:    "Burn Care",
		Category: "treatment",
		Steps:    []model.ProtocolStep{{ActionText: "Cool the burn"}, {ActionText: "Cover with dressing"}},
	}
	prompt := BuildRegenPrompt(original, "")
	require.Contains(t, prompt, "Cool the burn")
	require.Contains(t, prompt, "Cover with dressing")
}
