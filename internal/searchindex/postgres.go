package searchindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rawsence/procheck/internal/ai"
	"github.com/rawsence/procheck/internal/model"
	"github.com/rawsence/procheck/internal/pkg/dbutil"
)

const embedTaskType = "RETRIEVAL_DOCUMENT"

// PostgresIndexer writes approved protocols into the protocol_index
// table with an embedding computed at index time, making them
// retrievable by vector search alongside the rest of the corpus.
type PostgresIndexer struct {
	db       *sql.DB
	embedder ai.IEmbedder
}

func NewPostgresIndexer(dsn string, embedder ai.IEmbedder) (*PostgresIndexer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	return &PostgresIndexer{db: db, embedder: embedder}, nil
}

func (idx *PostgresIndexer) Index(ctx context.Context, userID string, protocols []model.GeneratedProtocol) (*Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	result := &Result{}
	for _, proto := range protocols {
		if err := idx.indexOne(ctx, userID, proto); err != nil {
			logger.Error("index protocol failed", zap.String("protocol_id", proto.ProtocolID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", proto.ProtocolID, err))
			continue
		}
		result.Indexed++
	}
	return result, nil
}

func (idx *PostgresIndexer) indexOne(ctx context.Context, userID string, proto model.GeneratedProtocol) error {
	body := indexText(proto)
	embedding, err := idx.embedder.Embed(ctx, body, embedTaskType)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	const query = `
		INSERT INTO protocol_index (protocol_id, user_id, category, title, body, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (protocol_id) DO UPDATE SET
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err = idx.db.ExecContext(ctx, query,
		proto.ProtocolID,
		userID,
		proto.Category,
		proto.Title,
		body,
		pgvector.NewVector(embedding),
		proto.CreatedAt,
	)
	return err
}

func (idx *PostgresIndexer) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("protocol_index", map[string]interface{}{"user_id": userID})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := idx.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// indexText flattens a protocol into one searchable passage: title,
// then every step's action and explanation in order.
func indexText(proto model.GeneratedProtocol) string {
	var sb strings.Builder
	sb.WriteString(proto.Title)
	for _, step := range proto.Steps {
		sb.WriteString("\n")
		sb.WriteString(step.ActionText)
		if strings.TrimSpace(step.Explanation) != "" {
			sb.WriteString(": ")
			sb.WriteString(step.Explanation)
		}
	}
	return sb.String()
}
