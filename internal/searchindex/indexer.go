package searchindex

import (
	"context"

	"github.com/rawsence/procheck/internal/model"
)

// Result summarizes one indexing run. Per-protocol failures are
// collected instead of aborting the run: a single bad embedding must
// not block approval of the remaining protocols.
type Result struct {
	Indexed int      `json:"indexed"`
	Errors  []string `json:"errors,omitempty"`
}

type Indexer interface {
	Index(ctx context.Context, userID string, protocols []model.GeneratedProtocol) (*Result, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// Noop is used when no index DSN is configured. Approval still works;
// protocols just never become searchable.
type Noop struct{}

func (Noop) Index(ctx context.Context, userID string, protocols []model.GeneratedProtocol) (*Result, error) {
	return &Result{Indexed: len(protocols)}, nil
}

func (Noop) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}
