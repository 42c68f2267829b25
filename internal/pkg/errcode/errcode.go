package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrInvalidFile
	ErrExtractionFailed
	ErrUploadFailed
	ErrUploadInProgress
	ErrNoProtocols
	ErrIndexingFailed
	ErrAIUnavailable
)
