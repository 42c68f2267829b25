package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/rawsence/procheck/internal/model"
	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

type UploadJobRepo struct {
	db *sql.DB
}

func NewUploadJobRepo(db *sql.DB) *UploadJobRepo {
	return &UploadJobRepo{db: db}
}

func (r *UploadJobRepo) Create(ctx context.Context, job *model.UploadJob) error {
	sqlStr, args, err := builder.BuildInsert("upload_jobs", []map[string]interface{}{{
		"id":        job.ID,
		"user_id":   job.UserID,
		"status":    job.Status,
		"documents": job.Documents,
		"chunks":    job.Chunks,
		"protocols": job.Protocols,
		"error":     job.Error,
		"ctime":     job.Ctime,
		"mtime":     job.Mtime,
	}})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UploadJobRepo) Update(ctx context.Context, job *model.UploadJob) error {
	sqlStr, args, err := builder.BuildUpdate("upload_jobs",
		map[string]interface{}{"id": job.ID, "user_id": job.UserID},
		map[string]interface{}{
			"status":    job.Status,
			"documents": job.Documents,
			"chunks":    job.Chunks,
			"protocols": job.Protocols,
			"error":     job.Error,
			"mtime":     job.Mtime,
		})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UploadJobRepo) Get(ctx context.Context, userID, id string) (*model.UploadJob, error) {
	sqlStr, args, err := builder.BuildSelect("upload_jobs",
		map[string]interface{}{"id": id, "user_id": userID},
		[]string{"id", "user_id", "status", "documents", "chunks", "protocols", "error", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	job := &model.UploadJob{}
	if err := row.Scan(&job.ID, &job.UserID, &job.Status, &job.Documents,
		&job.Chunks, &job.Protocols, &job.Error, &job.Ctime, &job.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *UploadJobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.UploadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlStr, args, err := builder.BuildSelect("upload_jobs",
		map[string]interface{}{"user_id": userID, "_orderby": "ctime desc", "_limit": []uint{0, uint(limit)}},
		[]string{"id", "user_id", "status", "documents", "chunks", "protocols", "error", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.UploadJob
	for rows.Next() {
		job := &model.UploadJob{}
		if err := rows.Scan(&job.ID, &job.UserID, &job.Status, &job.Documents,
			&job.Chunks, &job.Protocols, &job.Error, &job.Ctime, &job.Mtime); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteTerminalBefore removes finished job rows older than the cutoff.
// Rows still marked processing are kept; the cleanup job must never
// erase history out from under a live task.
func (r *UploadJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("upload_jobs", map[string]interface{}{
		"status in": []string{model.UploadStatusCompleted, model.UploadStatusCancelled, model.UploadStatusFailed},
		"mtime <":   cutoff,
	})
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
