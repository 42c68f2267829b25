package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rawsence/procheck/internal/filestore"
	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

const keyPrefix = "previews"

// Store persists preview records in the blob store under
// previews/<user>_<upload>.json. A missing record is not an error at
// this layer; Get reports it as a not_found status so callers can hand
// the status straight back to the client.
type Store struct {
	blobs filestore.Store
}

func NewStore(blobs filestore.Store) *Store {
	return &Store{blobs: blobs}
}

func recordKey(userID, uploadID string) string {
	return path.Join(keyPrefix, fmt.Sprintf("%s_%s.json", userID, uploadID))
}

func (s *Store) Save(ctx context.Context, userID string, rec *model.PreviewRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode preview record: %w", err)
	}
	if err := s.blobs.Save(ctx, recordKey(userID, rec.UploadID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save preview record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, uploadID string) (*model.PreviewRecord, error) {
	rc, err := s.blobs.Open(ctx, recordKey(userID, uploadID))
	if err != nil {
		if appErr.IsNotFound(err) {
			return &model.PreviewRecord{Status: model.PreviewStatusNotFound, UploadID: uploadID}, nil
		}
		return nil, fmt.Errorf("open preview record: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read preview record: %w", err)
	}
	var rec model.PreviewRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode preview record: %w", err)
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, userID, uploadID string) error {
	if err := s.blobs.Delete(ctx, recordKey(userID, uploadID)); err != nil && !appErr.IsNotFound(err) {
		return fmt.Errorf("delete preview record: %w", err)
	}
	return nil
}

// ClearUser removes every staged preview owned by the user and returns
// how many records were deleted.
func (s *Store) ClearUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.blobs.List(ctx, keyPrefix+"/"+userID+"_")
	if err != nil {
		return 0, fmt.Errorf("list preview records: %w", err)
	}
	cleared := 0
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil && !appErr.IsNotFound(err) {
			return cleared, fmt.Errorf("delete preview record %s: %w", key, err)
		}
		cleared++
	}
	return cleared, nil
}

// ListAll returns every preview key with its owner and upload id parsed
// out, for the cleanup job. Keys that do not match the naming scheme
// are skipped.
func (s *Store) ListAll(ctx context.Context) ([]Ref, error) {
	keys, err := s.blobs.List(ctx, keyPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list preview records: %w", err)
	}
	refs := make([]Ref, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSuffix(path.Base(key), ".json")
		idx := strings.LastIndex(name, "_")
		if idx <= 0 || idx == len(name)-1 {
			continue
		}
		refs = append(refs, Ref{UserID: name[:idx], UploadID: name[idx+1:]})
	}
	return refs, nil
}

type Ref struct {
	UserID   string
	UploadID string
}
