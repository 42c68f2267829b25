package model

const (
	PreviewStatusProcessing       = "processing"
	PreviewStatusAwaitingApproval = "awaiting_approval"
	PreviewStatusCancelled        = "cancelled"
	PreviewStatusFailed           = "failed"
	PreviewStatusNotFound         = "not_found"
)

// PreviewRecord is the durable staging snapshot of one upload's pipeline
// output, keyed by (user, upload). It is the single source of truth for
// outcome between generation and approval.
type PreviewRecord struct {
	Status    string              `json:"status"`
	Protocols []GeneratedProtocol `json:"protocols"`
	UploadID  string              `json:"upload_id"`
	CreatedAt int64               `json:"created_at"`
}

func (r *PreviewRecord) Terminal() bool {
	switch r.Status {
	case PreviewStatusAwaitingApproval, PreviewStatusCancelled, PreviewStatusFailed:
		return true
	}
	return false
}
