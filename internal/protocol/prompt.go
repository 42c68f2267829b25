package protocol

import (
	"fmt"
	"strings"

	"github.com/rawsence/procheck/internal/model"
)

// BuildPrompt assembles the generation prompt for one (chunk, category)
// pass. Pure function of its inputs so a retry can rebuild it instead of
// mutating shared prompt state.
func BuildPrompt(chunkText, sourceFile string, category model.ProtocolCategory, customPrompt string) string {
	var sb strings.Builder
	sb.WriteString("Extract a procedural checklist from the provided source. Use ONLY information explicitly in the source.\n")
	sb.WriteString("\nRULES:\n")
	sb.WriteString("1. ONLY use information EXPLICITLY in the source below\n")
	sb.WriteString("2. EVERY step needs: 'text' (action), 'explanation' (2-3 sentences), 'citation' (1)\n")
	sb.WriteString("3. NO empty explanations, NO citation=0, NO made-up content\n")
	sb.WriteString("4. If no relevant protocols found, return an empty checklist\n")
	sb.WriteString("\nOUTPUT FORMAT (JSON only, no markdown):\n")
	sb.WriteString(`{"title": "Protocol Name", "checklist": [{"step": 1, "text": "Brief action", "explanation": "Detailed how-to", "citation": 1}], "citations": ["Source text"]}` + "\n")
	fmt.Fprintf(&sb, "\nFOCUS: Extract %s only.\n", category.Focus)
	fmt.Fprintf(&sb, "\nQUERY: %s protocol from %s\n", model.TitleCase(category.Name), sourceFile)
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		sb.WriteString("\nADDITIONAL USER INSTRUCTIONS:\n")
		sb.WriteString(custom)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nSOURCE:\n[Source 1: %s]\n%s\n", sourceFile, chunkText)
	return sb.String()
}

// BuildRetryPrompt derives the prompt for a retry attempt. Attempt 0
// returns the base prompt untouched; later attempts append an
// intensified reminder about the mandatory fields.
func BuildRetryPrompt(basePrompt string, attempt int) string {
	if attempt <= 0 {
		return basePrompt
	}
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\nCRITICAL: The previous response was incomplete. You MUST include:\n")
	sb.WriteString("1. An 'explanation' field (2-3 sentences) for EVERY step\n")
	sb.WriteString("2. A 'citation' field (must be 1) for EVERY step\n")
	sb.WriteString("3. A 'citations' array with source text\n")
	sb.WriteString("DO NOT leave these fields empty.\n")
	return sb.String()
}

// BuildRegenPrompt assembles the prompt used when the user regenerates a
// staged protocol with new instructions. Original chunks are gone by
// then; the stored citation excerpts stand in as source context.
func BuildRegenPrompt(original model.GeneratedProtocol, customPrompt string) string {
	var snippets []string
	for _, citation := range original.Citations {
		if strings.TrimSpace(citation.Excerpt) == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("[Source: %s] %s", citation.Source, citation.Excerpt))
	}
	if len(snippets) == 0 {
		var steps []string
		for _, step := range original.Steps {
			steps = append(steps, step.ActionText)
		}
		snippets = []string{"[Original Protocol] " + strings.Join(steps, " ")}
	}

	var sb strings.Builder
	sb.WriteString("Regenerate this procedural checklist with improved structure and content.\n")
	fmt.Fprintf(&sb, "\nOriginal protocol: %s\n", original.Title)
	sb.WriteString("\nREQUIREMENTS:\n")
	sb.WriteString("- Each step must be specific and actionable\n")
	sb.WriteString("- Include a detailed 'explanation' (2-3 sentences) for every step\n")
	fmt.Fprintf(&sb, "- Maintain focus on %s procedures\n", original.Category)
	sb.WriteString("- Keep steps properly sequenced\n")
	sb.WriteString("\nOUTPUT FORMAT (JSON only, no markdown):\n")
	sb.WriteString(`{"title": "Protocol Name", "checklist": [{"step": 1, "text": "Brief action", "explanation": "Detailed how-to", "citation": 1}], "citations": ["Source text"]}` + "\n")
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		sb.WriteString("\nADDITIONAL USER INSTRUCTIONS:\n")
		sb.WriteString(custom)
		sb.WriteString("\n")
	}
	sb.WriteString("\nSOURCE:\n")
	sb.WriteString(strings.Join(snippets, "\n"))
	sb.WriteString("\n")
	return sb.String()
}
