package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/rawsence/procheck/internal/preview"
	"github.com/rawsence/procheck/internal/repo"
	"github.com/rawsence/procheck/internal/session"
)

// PreviewCleanupJob expires staged previews that were never approved
// and trims finished upload job rows. Previews belonging to a still
// registered task are left alone regardless of age.
type PreviewCleanupJob struct {
	previews *preview.Store
	jobs     *repo.UploadJobRepo
	registry *session.Registry
	ttl      time.Duration
}

func NewPreviewCleanupJob(previews *preview.Store, jobs *repo.UploadJobRepo, registry *session.Registry, ttl time.Duration) *PreviewCleanupJob {
	return &PreviewCleanupJob{previews: previews, jobs: jobs, registry: registry, ttl: ttl}
}

func (j *PreviewCleanupJob) Name() string {
	return "preview_cleanup"
}

func (j *PreviewCleanupJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	cutoff := time.Now().Add(-j.ttl).Unix()

	refs, err := j.previews.ListAll(ctx)
	if err != nil {
		return err
	}
	expired := 0
	for _, ref := range refs {
		if j.registry.Active(ref.UserID, ref.UploadID) {
			continue
		}
		rec, err := j.previews.Get(ctx, ref.UserID, ref.UploadID)
		if err != nil {
			logger.Error("read preview for cleanup failed",
				zap.String("user_id", ref.UserID), zap.String("upload_id", ref.UploadID), zap.Error(err))
			continue
		}
		if rec.CreatedAt >= cutoff {
			continue
		}
		if err := j.previews.Delete(ctx, ref.UserID, ref.UploadID); err != nil {
			logger.Error("delete expired preview failed",
				zap.String("user_id", ref.UserID), zap.String("upload_id", ref.UploadID), zap.Error(err))
			continue
		}
		expired++
	}

	trimmed, err := j.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logger.Info("preview cleanup done", zap.Int("expired_previews", expired), zap.Int64("trimmed_jobs", trimmed))
	return nil
}
