package types

import "errors"

// Sentinel errors shared by the upload, diagnosis and session packages.
var (
	ErrNoFiles               = errors.New("at least one CT or MRI file must be provided")
	ErrBusy                  = errors.New("a diagnosis is already in progress")
	ErrUnsupportedType       = errors.New("unsupported file type")
	ErrFileTooLarge          = errors.New("file exceeds size limit")
	ErrClassifierUnavailable = errors.New("vision classifier unavailable")
)
