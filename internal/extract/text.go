package extract

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

// minDocumentChars is the floor below which a document is considered to
// have no usable text and is dropped from the upload.
const minDocumentChars = 100

type textStrategy struct {
	name string
	fn   func(data []byte) (string, error)
}

var strategiesByKind = map[DocKind][]textStrategy{
	KindPDF: {
		{name: "pdf_pages", fn: extractPDFPages},
		{name: "pdf_raw", fn: extractPDFRaw},
	},
	KindMarkdown: {
		{name: "markdown_ast", fn: extractMarkdown},
	},
}

// Documents runs text extraction over staged entries. Strategies are
// tried in order per document; the first one yielding non-empty text
// wins. A document that stays under the character floor after every
// strategy is dropped with a log line, never aborting the upload. The
// upload as a whole fails only when no document survives.
func Documents(ctx context.Context, entries []Entry) ([]model.ExtractedDocument, error) {
	logger := logutil.GetLogger(ctx)
	var docs []model.ExtractedDocument
	for _, entry := range entries {
		// Checkpoint per document: text extraction can be slow on big
		// PDFs and cancel should land between documents.
		if err := ctx.Err(); err != nil {
			return nil, appErr.ErrCancelled
		}
		text := extractOne(ctx, entry)
		if len(strings.TrimSpace(text)) < minDocumentChars {
			logger.Warn("document dropped: insufficient text",
				zap.String("file", entry.Filename),
				zap.Int("chars", len(strings.TrimSpace(text))),
			)
			continue
		}
		docs = append(docs, model.ExtractedDocument{
			Filename:  entry.Filename,
			RawBytes:  entry.Data,
			Text:      text,
			WordCount: len(strings.Fields(text)),
		})
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNoDocuments
	}
	logger.Info("text extraction finished", zap.Int("documents", len(docs)))
	return docs, nil
}

func extractOne(ctx context.Context, entry Entry) string {
	logger := logutil.GetLogger(ctx).With(zap.String("file", entry.Filename))
	for _, strategy := range strategiesByKind[entry.Kind] {
		text, err := strategy.fn(entry.Data)
		if err != nil {
			logger.Debug("extraction strategy failed",
				zap.String("strategy", strategy.name),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) != "" {
			logger.Debug("extraction strategy succeeded", zap.String("strategy", strategy.name))
			return text
		}
	}
	return ""
}
