package protocol

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

const validResponse = `{"title": "Test Protocol", "checklist": [{"step": 1, "text": "Do the first thing", "explanation": "The source describes exactly how to do it.", "citation": 1}], "citations": ["source text"]}`

const emptyResponse = `{"title": "Nothing", "checklist": [], "citations": []}`

const incompleteResponse = `{"title": "Bad", "checklist": [{"step": 1, "text": "Do it", "explanation": "", "citation": 0}], "citations": ["src"]}`

// scriptedClient replays canned replies in order and records every
// prompt it saw.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	idx := len(s.prompts) - 1
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if idx < len(s.replies) {
		return s.replies[idx], nil
	}
	if len(s.replies) == 0 {
		return validResponse, nil
	}
	return s.replies[len(s.replies)-1], nil
}

func (s *scriptedClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func testChunks(n int) []model.Chunk {
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		chunks[i] = model.Chunk{
			ChunkID:        fmt.Sprintf("doc.md_%d", i),
			SourceFilename: "doc.md",
			Text:           fmt.Sprintf("Chunk %d body. %s", i, strings.Repeat("More source text. ", 30)),
			ChunkIndex:     i,
		}
	}
	return chunks
}

func TestGeneratorOnePassPerChunkAndCategory(t *testing.T) {
	client := &scriptedClient{}
	g := NewGenerator(client, 5, 2)
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(2), "", nil)
	require.NoError(t, err)
	require.Equal(t, 2*len(model.Categories), client.calls())
	require.Len(t, protocols, 2*len(model.Categories))

	for i, proto := range protocols {
		require.Equal(t, "u1", proto.OwnerID)
		require.Equal(t, "user", proto.SourceType)
		require.False(t, proto.Incomplete)
		require.Len(t, proto.Citations, 1)
		require.Equal(t, "doc.md", proto.Citations[0].Source)
		require.Contains(t, proto.ProtocolID, fmt.Sprintf("_%d_", i+1))
	}
}

func TestGeneratorCapsChunks(t *testing.T) {
	client := &scriptedClient{}
	g := NewGenerator(client, 5, 2)
	_, err := g.Generate(context.Background(), "u1", "up1", testChunks(9), "", nil)
	require.NoError(t, err)
	require.Equal(t, 5*len(model.Categories), client.calls())
}

func TestGeneratorSkipsEmptyChecklists(t *testing.T) {
	client := &scriptedClient{replies: []string{emptyResponse}}
	g := NewGenerator(client, 5, 2)
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(1), "", nil)
	require.NoError(t, err)
	require.Equal(t, len(model.Categories), client.calls())
	require.Empty(t, protocols)
}

func TestGeneratorRetriesIncompleteResponse(t *testing.T) {
	client := &scriptedClient{replies: []string{incompleteResponse, validResponse, emptyResponse}}
	g := NewGenerator(client, 1, 2)
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(1), "", nil)
	require.NoError(t, err)
	// First category: incomplete then valid on retry. Remaining
	// categories: empty checklist, one call each.
	require.Equal(t, 2+len(model.Categories)-1, client.calls())
	require.Len(t, protocols, 1)
	require.False(t, protocols[0].Incomplete)
	require.Contains(t, client.prompts[1], "CRITICAL")
}

func TestGeneratorKeepsIncompleteAfterRetries(t *testing.T) {
	client := &scriptedClient{replies: []string{incompleteResponse}}
	g := NewGenerator(client, 1, 2)
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(1), "", nil)
	require.NoError(t, err)
	require.Len(t, protocols, len(model.Categories))
	for _, proto := range protocols {
		require.True(t, proto.Incomplete)
	}
}

func TestGeneratorSkipsFailedPass(t *testing.T) {
	client := &scriptedClient{
		errs:    []error{fmt.Errorf("model down"), fmt.Errorf("model down")},
		replies: []string{"", "", validResponse},
	}
	g := NewGenerator(client, 1, 2)
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(1), "", nil)
	require.NoError(t, err)
	// First category burned both attempts on errors and was skipped.
	require.Len(t, protocols, len(model.Categories)-1)
}

func TestGeneratorCancelAborts(t *testing.T) {
	client := &scriptedClient{}
	g := NewGenerator(client, 5, 2)
	calls := 0
	cancelled := func() bool {
		calls++
		return calls > 3
	}
	protocols, err := g.Generate(context.Background(), "u1", "up1", testChunks(5), "", cancelled)
	require.ErrorIs(t, err, appErr.ErrCancelled)
	require.Nil(t, protocols)
	require.Less(t, client.calls(), 5*len(model.Categories))
}

func TestGeneratorContextCancelAborts(t *testing.T) {
	client := &scriptedClient{}
	g := NewGenerator(client, 5, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, "u1", "up1", testChunks(1), "", nil)
	require.ErrorIs(t, err, appErr.ErrCancelled)
	require.Zero(t, client.calls())
}

func TestRegenerateReplacesStepsKeepsCitations(t *testing.T) {
	client := &scriptedClient{replies: []string{validResponse}}
	g := NewGenerator(client, 5, 2)
	original := model.GeneratedProtocol{
		ProtocolID: "upload_x_1_treatment",
		Title:      "Old Title",
		OwnerID:    "u1",
		Category:   "treatment",
		Steps:      []model.ProtocolStep{{StepNumber: 1, ActionText: "old step", Explanation: "old explanation text", CitationIndex: 1}},
		Citations:  []model.Citation{{ID: 1, Source: "doc.md", Excerpt: "excerpt"}},
	}
	proto, err := g.Regenerate(context.Background(), original, "tighten wording")
	require.NoError(t, err)
	require.Equal(t, original.ProtocolID, proto.ProtocolID)
	require.Equal(t, "Test Protocol", proto.Title)
	require.Equal(t, original.Citations, proto.Citations)
	require.False(t, proto.Incomplete)
	require.Contains(t, client.prompts[0], "tighten wording")
}

func TestRegenerateEmptyChecklistFails(t *testing.T) {
	client := &scriptedClient{replies: []string{emptyResponse}}
	g := NewGenerator(client, 5, 2)
	_, err := g.Regenerate(context.Background(), model.GeneratedProtocol{Title: "T", Category: "treatment"}, "")
	require.Error(t, err)
}

func TestExcerptTruncation(t *testing.T) {
	short := "short chunk text"
	require.Equal(t, short, excerpt(short, 300))

	long := strings.Repeat("assess the patient carefully ", 20)
	got := excerpt(long, 300)
	require.True(t, strings.HasSuffix(got, "..."))
	require.LessOrEqual(t, len(got), 303)
	// Word-boundary cut, no trailing partial word before the ellipsis.
	require.False(t, strings.HasSuffix(strings.TrimSuffix(got, "..."), " "))
}

func TestExcerptKeepsValidUTF8(t *testing.T) {
	// Unspaced multi-byte text with an odd prefix puts the byte cap
	// mid-rune; the cut must back up to a rune start.
	text := "x" + strings.Repeat("措", 150)
	got := excerpt(text, 300)
	require.True(t, utf8.ValidString(got))
	require.True(t, strings.HasSuffix(got, "..."))
}
