package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponsePlainJSON(t *testing.T) {
	raw := `{"title": "Sepsis Protocol", "checklist": [{"step": 1, "text": "Draw cultures", "explanation": "Obtain blood cultures before antibiotics.", "citation": 1}], "citations": ["Draw blood cultures first."]}`
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "Sepsis Protocol", resp.Title)
	require.Len(t, resp.Checklist, 1)
	require.Equal(t, 1, resp.Checklist[0].CitationIndex)
	require.Len(t, resp.Citations, 1)
}

func TestParseResponseStripsFences(t *testing.T) {
	raw := "```json\n{\"title\": \"T\", \"checklist\": [], \"citations\": []}\n```"
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "T", resp.Title)
}

func TestParseResponseLeadingProse(t *testing.T) {
	raw := "Here is the protocol you asked for:\n{\"title\": \"T\", \"checklist\": [], \"citations\": []}"
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "T", resp.Title)
}

func TestParseResponseRepairsTruncation(t *testing.T) {
	raw := `{"title": "T", "checklist": [{"step": 1, "text": "Do the thing", "explanation": "Because the source says so", "citation": 1}], "citations": ["the source te`
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "T", resp.Title)
	require.Len(t, resp.Checklist, 1)
}

func TestParseResponseGarbage(t *testing.T) {
	_, err := ParseResponse("I cannot help with that.")
	require.Error(t, err)
	_, err = ParseResponse("")
	require.Error(t, err)
}
