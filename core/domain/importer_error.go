package domain

import (
	"errors"
	"fmt"
)

// ImportErrorKind is the failure taxonomy of an import job. The string value is
// also the topic the job-level failure event is published on.
type ImportErrorKind string

const (
	KindAccount       ImportErrorKind = "contact:import:account:error"
	KindAPIClient     ImportErrorKind = "contact:import:api:client:error"
	KindContactClient ImportErrorKind = "contact:import:contact:client:error"
)

func (k ImportErrorKind) severity() int {
	switch k {
	case KindAccount:
		return 3
	case KindAPIClient:
		return 2
	case KindContactClient:
		return 1
	default:
		return 0
	}
}

func (k ImportErrorKind) String() string {
	return string(k)
}

// ImportError is a classified pipeline failure.
type ImportError struct {
	Kind ImportErrorKind
	// StatusCode is the transport status when one was reported, 0 otherwise.
	StatusCode int
	Cause      error
}

func (e *ImportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

func NewAccountError(cause error) *ImportError {
	return &ImportError{Kind: KindAccount, Cause: cause}
}

func NewAPIClientError(cause error, statusCode int) *ImportError {
	return &ImportError{Kind: KindAPIClient, StatusCode: statusCode, Cause: cause}
}

func NewContactClientError(cause error) *ImportError {
	return &ImportError{Kind: KindContactClient, Cause: cause}
}

// accountStatuses are transport statuses that mark the account itself as unusable.
//
// 400 is kept for compatibility with existing consumers of the account error
// topic even though a malformed request is not necessarily an account problem.
// It may be a misclassification.
var accountStatuses = map[int]bool{
	400: true,
	401: true,
	403: true,
}

// Classify promotes an API client error to an account error when its transport
// status indicates an authentication or authorization problem.
func Classify(err *ImportError) *ImportError {
	if err == nil || err.Kind != KindAPIClient || !accountStatuses[err.StatusCode] {
		return err
	}
	return &ImportError{Kind: KindAccount, StatusCode: err.StatusCode, Cause: err.Cause}
}

// MostSevere classifies every error and returns the one with the highest
// severity (account > api client > contact client). Ties keep the first.
func MostSevere(errs []*ImportError) *ImportError {
	var worst *ImportError
	for _, e := range errs {
		c := Classify(e)
		if c == nil {
			continue
		}
		if worst == nil || c.Kind.severity() > worst.Kind.severity() {
			worst = c
		}
	}
	return worst
}

// AsImportError extracts an ImportError from an error chain.
func AsImportError(err error) (*ImportError, bool) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
