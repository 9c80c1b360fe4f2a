package audits

import "errors"

var (
	ErrAuditNotFound = errors.New("audit not found")
	// ErrInvalidURL is returned at intake for targets that are not absolute public http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrRetriesExhausted is recorded when a job is dead-lettered.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
