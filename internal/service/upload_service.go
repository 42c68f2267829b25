package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rawsence/procheck/internal/config"
	"github.com/rawsence/procheck/internal/extract"
	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
	"github.com/rawsence/procheck/internal/preview"
	"github.com/rawsence/procheck/internal/protocol"
	"github.com/rawsence/procheck/internal/repo"
	"github.com/rawsence/procheck/internal/searchindex"
	"github.com/rawsence/procheck/internal/session"
)

// UploadService owns the upload lifecycle: accept a document bundle,
// run the extraction and generation pipeline in the background, stage
// the result as a preview, and move it into the search index on
// approval. Every mutation is scoped to the authenticated user.
type UploadService struct {
	cfg        config.UploadConfig
	stagingDir string
	registry   *session.Registry
	previews   *preview.Store
	jobs       *repo.UploadJobRepo
	generator  *protocol.Generator
	indexer    searchindex.Indexer
	now        func() time.Time
}

func NewUploadService(cfg config.UploadConfig, stagingDir string, registry *session.Registry,
	previews *preview.Store, jobs *repo.UploadJobRepo, generator *protocol.Generator,
	indexer searchindex.Indexer) *UploadService {
	return &UploadService{
		cfg:        cfg,
		stagingDir: stagingDir,
		registry:   registry,
		previews:   previews,
		jobs:       jobs,
		generator:  generator,
		indexer:    indexer,
		now:        time.Now,
	}
}

// Begin accepts an upload, stages the initial processing record and
// starts the pipeline in the background. It returns as soon as the task
// is registered; progress is observed through Status and Preview.
func (s *UploadService) Begin(ctx context.Context, userID, filename string, raw []byte, customPrompt string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty upload", appErr.ErrInvalid)
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(raw)) > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", appErr.ErrInvalid, s.cfg.MaxUploadBytes)
	}
	uploadID := newUploadID()

	// The task outlives the HTTP request, so it gets its own context.
	// The cancel func handed to the registry is the second cancellation
	// layer: it unblocks a pipeline stage stuck in an external call.
	taskCtx, cancel := context.WithCancel(context.Background())
	if err := s.registry.Register(userID, uploadID, cancel); err != nil {
		cancel()
		return "", err
	}

	now := s.now().Unix()
	rec := &model.PreviewRecord{Status: model.PreviewStatusProcessing, Protocols: []model.GeneratedProtocol{}, UploadID: uploadID, CreatedAt: now}
	if err := s.previews.Save(ctx, userID, rec); err != nil {
		s.registry.Unregister(userID, uploadID)
		cancel()
		return "", err
	}
	job := &model.UploadJob{ID: uploadID, UserID: userID, Status: model.UploadStatusProcessing, Ctime: now, Mtime: now}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.registry.Unregister(userID, uploadID)
		cancel()
		return "", err
	}

	go s.process(taskCtx, job, filename, raw, customPrompt)
	return uploadID, nil
}

// process is the background pipeline. Cleanup is unconditional: the
// registry entry, the staging directory and the job row are settled on
// every exit path, normal or not.
func (s *UploadService) process(ctx context.Context, job *model.UploadJob, filename string, raw []byte, customPrompt string) {
	userID, uploadID := job.UserID, job.ID
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("upload_id", uploadID))
	staging := filepath.Join(s.stagingDir, userID+"_"+uploadID)

	var finalStatus string
	var finalErr error
	defer func() {
		if r := recover(); r != nil {
			finalStatus, finalErr = model.UploadStatusFailed, fmt.Errorf("pipeline panic: %v", r)
			logger.Error("pipeline panicked", zap.Any("panic", r))
			s.writeOutcome(userID, uploadID, nil, finalErr)
		}
		extract.CleanupStaging(context.Background(), staging)
		s.registry.Unregister(userID, uploadID)
		s.finishJob(job, finalStatus, finalErr)
	}()

	cancelled := func() bool { return s.registry.IsCancelled(userID, uploadID) }

	entries, err := extract.Unpack(ctx, raw, filename, staging)
	if err != nil {
		finalStatus, finalErr = s.failureStatus(err)
		s.writeOutcome(userID, uploadID, nil, err)
		return
	}
	if cancelled() {
		finalStatus, finalErr = model.UploadStatusCancelled, appErr.ErrCancelled
		s.writeOutcome(userID, uploadID, nil, appErr.ErrCancelled)
		return
	}
	docs, err := extract.Documents(ctx, entries)
	if err != nil {
		finalStatus, finalErr = s.failureStatus(err)
		s.writeOutcome(userID, uploadID, nil, err)
		return
	}
	job.Documents = len(docs)

	chunks := extract.ChunkDocuments(docs)
	job.Chunks = len(chunks)
	logger.Info("pipeline extracted", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))

	protocols, err := s.generator.Generate(ctx, userID, uploadID, chunks, customPrompt, cancelled)
	if err != nil {
		finalStatus, finalErr = s.failureStatus(err)
		s.writeOutcome(userID, uploadID, nil, err)
		return
	}
	job.Protocols = len(protocols)

	finalStatus = model.UploadStatusCompleted
	s.writeOutcome(userID, uploadID, protocols, nil)
	logger.Info("pipeline completed", zap.Int("protocols", len(protocols)))
}

func (s *UploadService) failureStatus(err error) (string, error) {
	if appErr.IsCancelled(err) {
		return model.UploadStatusCancelled, appErr.ErrCancelled
	}
	return model.UploadStatusFailed, err
}

// writeOutcome replaces the processing record with the terminal one.
// A cancelled record never carries protocols, even when some were
// already generated before the flag was noticed.
func (s *UploadService) writeOutcome(userID, uploadID string, protocols []model.GeneratedProtocol, cause error) {
	status := model.PreviewStatusAwaitingApproval
	switch {
	case appErr.IsCancelled(cause):
		status = model.PreviewStatusCancelled
		protocols = nil
	case cause != nil:
		status = model.PreviewStatusFailed
		protocols = nil
	}
	if protocols == nil {
		protocols = []model.GeneratedProtocol{}
	}
	rec := &model.PreviewRecord{Status: status, Protocols: protocols, UploadID: uploadID, CreatedAt: s.now().Unix()}
	if err := s.previews.Save(context.Background(), userID, rec); err != nil {
		logutil.GetLogger(context.Background()).Error("write preview outcome failed",
			zap.String("user_id", userID), zap.String("upload_id", uploadID), zap.Error(err))
	}
}

func (s *UploadService) finishJob(job *model.UploadJob, status string, cause error) {
	if status == "" {
		status = model.UploadStatusFailed
	}
	job.Status = status
	job.Mtime = s.now().Unix()
	if cause != nil && !appErr.IsCancelled(cause) {
		job.Error = cause.Error()
	}
	if err := s.jobs.Update(context.Background(), job); err != nil {
		logutil.GetLogger(context.Background()).Error("update upload job failed",
			zap.String("upload_id", job.ID), zap.Error(err))
	}
}

// Cancel requests cooperative cancellation. The preview record flips to
// cancelled immediately so the client sees the outcome at once, while
// the background task notices the flag or the context and finishes its
// own cleanup. Cancelling an already finished upload is a no-op that
// still rewrites the record to cancelled, matching what the caller
// asked for.
func (s *UploadService) Cancel(ctx context.Context, userID, uploadID string) (bool, error) {
	wasRunning := s.registry.Cancel(userID, uploadID)
	rec := &model.PreviewRecord{
		Status:    model.PreviewStatusCancelled,
		Protocols: []model.GeneratedProtocol{},
		UploadID:  uploadID,
		CreatedAt: s.now().Unix(),
	}
	if err := s.previews.Save(ctx, userID, rec); err != nil {
		return wasRunning, err
	}
	return wasRunning, nil
}

// Status reports the lifecycle state of an upload from its preview
// record, plus protocol count once generation finished.
func (s *UploadService) Status(ctx context.Context, userID, uploadID string) (*model.PreviewRecord, error) {
	return s.previews.Get(ctx, userID, uploadID)
}

// Progress returns the durable job row for an upload, or nil when no
// run was ever recorded under the id.
func (s *UploadService) Progress(ctx context.Context, userID, uploadID string) (*model.UploadJob, error) {
	job, err := s.jobs.Get(ctx, userID, uploadID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// Preview returns the staged record for review. Only an upload that ran
// to completion has protocols to show; other states are returned as-is
// so the client can render progress or the terminal outcome.
func (s *UploadService) Preview(ctx context.Context, userID, uploadID string) (*model.PreviewRecord, error) {
	return s.previews.Get(ctx, userID, uploadID)
}

// Approve moves a staged preview into the search index and drops the
// preview record. Only awaiting_approval records with at least one
// protocol are approvable; a cancelled or failed record has nothing to
// publish. Protocols that fail revalidation are skipped, not fatal;
// the rest are still indexed.
func (s *UploadService) Approve(ctx context.Context, userID, uploadID string) (*searchindex.Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("upload_id", uploadID))
	rec, err := s.previews.Get(ctx, userID, uploadID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.PreviewStatusNotFound {
		return nil, appErr.ErrNotFound
	}
	if rec.Status != model.PreviewStatusAwaitingApproval || len(rec.Protocols) == 0 {
		return nil, fmt.Errorf("%w: no protocols to approve in status %s", appErr.ErrInvalid, rec.Status)
	}
	valid := make([]model.GeneratedProtocol, 0, len(rec.Protocols))
	for _, proto := range rec.Protocols {
		if len(proto.Steps) > 0 && len(proto.Citations) == 0 {
			logger.Warn("skipping protocol without citations",
				zap.String("protocol_id", proto.ProtocolID))
			continue
		}
		valid = append(valid, proto)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid protocols to approve", appErr.ErrInvalid)
	}
	result, err := s.indexer.Index(ctx, userID, valid)
	if err != nil {
		return nil, fmt.Errorf("index protocols: %w", err)
	}
	if err := s.previews.Delete(ctx, userID, uploadID); err != nil {
		return result, err
	}
	return result, nil
}

// Regenerate reruns every staged protocol with fresh instructions. The
// original chunks are gone, so generation works from the stored
// citation excerpts. A protocol whose regeneration fails keeps its
// original content, retitled and flagged so the user can tell it apart.
func (s *UploadService) Regenerate(ctx context.Context, userID, uploadID, customPrompt string) (*model.PreviewRecord, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("upload_id", uploadID))
	rec, err := s.previews.Get(ctx, userID, uploadID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.PreviewStatusNotFound {
		return nil, appErr.ErrNotFound
	}
	if rec.Status != model.PreviewStatusAwaitingApproval || len(rec.Protocols) == 0 {
		return nil, fmt.Errorf("%w: nothing to regenerate in status %s", appErr.ErrInvalid, rec.Status)
	}
	regenerated := make([]model.GeneratedProtocol, 0, len(rec.Protocols))
	for _, original := range rec.Protocols {
		proto, err := s.generator.Regenerate(ctx, original, customPrompt)
		if err != nil {
			logger.Error("regenerate protocol failed, keeping original",
				zap.String("protocol_id", original.ProtocolID), zap.Error(err))
			fallback := original
			fallback.Title = "[Fallback] " + original.Title
			fallback.Incomplete = true
			regenerated = append(regenerated, fallback)
			continue
		}
		regenerated = append(regenerated, *proto)
	}
	rec.Protocols = regenerated
	rec.CreatedAt = s.now().Unix()
	if err := s.previews.Save(ctx, userID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Clear drops every staged preview the user owns.
func (s *UploadService) Clear(ctx context.Context, userID string) (int, error) {
	return s.previews.ClearUser(ctx, userID)
}

// ClearOne drops a single staged preview.
func (s *UploadService) ClearOne(ctx context.Context, userID, uploadID string) error {
	return s.previews.Delete(ctx, userID, uploadID)
}

// History lists the user's recent upload runs.
func (s *UploadService) History(ctx context.Context, userID string, limit int) ([]*model.UploadJob, error) {
	return s.jobs.ListByUser(ctx, userID, limit)
}
