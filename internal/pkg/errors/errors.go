package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrExtraction   = errors.New("archive extraction failed")
	ErrNoDocuments  = errors.New("no usable documents in upload")
	ErrCancelled    = errors.New("upload cancelled")
	ErrUploadFile   = errors.New("invalid upload file")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
