package service

import "errors"

// Pipeline error taxonomy. Every ingestion step either fully succeeds or
// fails with one of these; no partial receipt is ever persisted. The only
// tolerated post-success failure is the category index update, which is
// logged instead of rolled back.
var (
	// ErrPreprocess means the uploaded bytes could not be decoded as an image.
	ErrPreprocess = errors.New("image preprocessing failed")
	// ErrRecognition means the OCR engine failed or produced no text.
	ErrRecognition = errors.New("text recognition failed")
	// ErrMissingCategory means no category name was given and none could be
	// inferred from the extracted bill type.
	ErrMissingCategory = errors.New("receipt category could not be determined")
	// ErrStorageUpload means the object storage upload failed.
	ErrStorageUpload = errors.New("storage upload failed")
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)
