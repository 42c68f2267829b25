package model

const (
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusCancelled  = "cancelled"
	UploadStatusFailed     = "failed"
)

// UploadJob is the durable history row for one upload run. The in-memory
// session registry answers "is it still running"; this row survives the
// task and feeds the status endpoint and the cleanup job.
type UploadJob struct {
	ID        string
	UserID    string
	Status    string
	Documents int
	Chunks    int
	Protocols int
	Error     string
	Ctime     int64
	Mtime     int64
}
