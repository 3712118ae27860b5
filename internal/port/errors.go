package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrCommitNotFound  = errors.New("commit not found")
	ErrCommitExists    = errors.New("commit already exists")
	ErrReleaseNotFound = errors.New("release not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrEmptySummary    = errors.New("empty summary response")
)
