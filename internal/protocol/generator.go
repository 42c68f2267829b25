package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rawsence/procheck/internal/ai"
	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const citationExcerptChars = 300

// CancelCheck reports whether the owning upload was cancelled out of
// band. The generator consults it around every model call in addition
// to the context, so a cancel flag raised between calls is honored even
// when the context has not been torn down yet.
type CancelCheck func() bool

type Generator struct {
	client      ai.IGenerator
	maxChunks   int
	maxAttempts int
	now         func() time.Time
}

func NewGenerator(client ai.IGenerator, maxChunks, maxAttempts int) *Generator {
	if maxChunks <= 0 {
		maxChunks = 5
	}
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Generator{client: client, maxChunks: maxChunks, maxAttempts: maxAttempts, now: time.Now}
}

// Generate runs the multi-pass loop: the first maxChunks chunks each go
// through every category in order. A failed pass is logged and skipped
// so one bad chunk cannot sink the whole upload; cancellation aborts
// the entire run with ErrCancelled and discards partial results.
func (g *Generator) Generate(ctx context.Context, userID, uploadID string, chunks []model.Chunk, customPrompt string, cancelled CancelCheck) ([]model.GeneratedProtocol, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("upload_id", uploadID))

	limit := len(chunks)
	if limit > g.maxChunks {
		limit = g.maxChunks
	}
	protocols := make([]model.GeneratedProtocol, 0, limit*len(model.Categories))
	for idx := 0; idx < limit; idx++ {
		chunk := chunks[idx]
		for _, category := range model.Categories {
			if err := checkCancelled(ctx, cancelled); err != nil {
				logger.Info("generation cancelled", zap.Int("chunk", idx), zap.String("category", category.Name))
				return nil, err
			}
			resp, incomplete, err := g.generateOne(ctx, chunk, category, customPrompt)
			if cerr := checkCancelled(ctx, cancelled); cerr != nil {
				logger.Info("generation cancelled after model call", zap.Int("chunk", idx), zap.String("category", category.Name))
				return nil, cerr
			}
			if err != nil {
				logger.Error("generation pass failed, skipping",
					zap.Int("chunk", idx), zap.String("category", category.Name), zap.Error(err))
				continue
			}
			if len(resp.Checklist) == 0 {
				continue
			}
			id := fmt.Sprintf("upload_%s_%d_%s", uploadID, len(protocols)+1, category.Name)
			proto, err := model.NewGeneratedProtocol(id, resp.Title, userID, category.Name,
				resp.Checklist, []model.Citation{chunkCitation(chunk)}, g.now().Unix())
			if err != nil {
				logger.Error("discarding malformed protocol", zap.Error(err))
				continue
			}
			proto.Incomplete = incomplete
			protocols = append(protocols, *proto)
		}
	}
	logger.Info("generation finished", zap.Int("chunks", limit), zap.Int("protocols", len(protocols)))
	return protocols, nil
}

// Regenerate reruns a single staged protocol against the stored
// citation excerpts. Unlike Generate it never drops the protocol on
// failure; the caller decides what to fall back to.
func (g *Generator) Regenerate(ctx context.Context, original model.GeneratedProtocol, customPrompt string) (*model.GeneratedProtocol, error) {
	prompt := BuildRegenPrompt(original, customPrompt)
	raw, err := g.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("regenerate call: %w", err)
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("regenerate parse: %w", err)
	}
	if len(resp.Checklist) == 0 {
		return nil, fmt.Errorf("regenerate returned empty checklist")
	}
	report := Validate(resp)
	proto, err := model.NewGeneratedProtocol(original.ProtocolID, resp.Title, original.OwnerID,
		original.Category, resp.Checklist, original.Citations, g.now().Unix())
	if err != nil {
		return nil, err
	}
	proto.Incomplete = !report.Valid
	return proto, nil
}

// generateOne is one (chunk, category) pass with retries. A response
// that still fails validation on the final attempt is returned with the
// incomplete flag set rather than discarded.
func (g *Generator) generateOne(ctx context.Context, chunk model.Chunk, category model.ProtocolCategory, customPrompt string) (*ModelResponse, bool, error) {
	basePrompt := BuildPrompt(chunk.Text, chunk.SourceFilename, category, customPrompt)
	var lastResp *ModelResponse
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		raw, err := g.client.Generate(ctx, BuildRetryPrompt(basePrompt, attempt))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, false, appErr.ErrCancelled
			}
			continue
		}
		resp, err := ParseResponse(raw)
		if err != nil {
			lastErr = err
			continue
		}
		report := Validate(resp)
		if report.Valid {
			return resp, false, nil
		}
		lastResp = resp
		lastErr = fmt.Errorf("incomplete response: %s", report.Reason)
	}
	if lastResp != nil {
		return lastResp, true, nil
	}
	return nil, false, lastErr
}

func checkCancelled(ctx context.Context, cancelled CancelCheck) error {
	if cancelled != nil && cancelled() {
		return appErr.ErrCancelled
	}
	if ctx.Err() != nil {
		return appErr.ErrCancelled
	}
	return nil
}

func chunkCitation(chunk model.Chunk) model.Citation {
	return model.Citation{ID: 1, Source: chunk.SourceFilename, Excerpt: excerpt(chunk.Text, citationExcerptChars)}
}

func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	end := limit
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
