package expense

import "errors"

var (
	// ErrNotFound is returned when a transaction, receipt or match id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation would overwrite a terminal state
	// or violate a uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition is returned for status changes the state machines never allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReceiptNotReady is returned when a receipt cannot take part in matching yet:
	// OCR has not completed or the extracted amount/date is missing.
	ErrReceiptNotReady = errors.New("receipt not ready for matching")

	// ErrBelowMinScore is returned when an explicitly requested pair scores under the floor.
	ErrBelowMinScore = errors.New("confidence below minimum score")

	// ErrInvalidThreshold is returned for auto-match thresholds outside [0,100].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

	// ErrInvalidImport is returned when an import source cannot be read at all.
	ErrInvalidImport = errors.New("invalid import source")
)
