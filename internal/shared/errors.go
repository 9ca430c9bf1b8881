package shared

import "errors"

// Error kinds shared by the domain packages. Domain errors match one of these
// through errors.Is so the HTTP layer can map them without knowing the domain.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed input validation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state or version conflict.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrRejected indicates a well-formed request refused by a business rule.
	ErrRejected = errors.New("rejected by business rule")
	// ErrStore indicates the underlying store failed.
	ErrStore = errors.New("store failure")
)
