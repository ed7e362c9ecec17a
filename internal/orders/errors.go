package orders

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrUnauthorized      = errors.New("actor not permitted")
	ErrPersistence       = errors.New("storage write failed")

	ErrSelfOrder      = errors.New("cannot order your own gig")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrInvalidReview  = errors.New("invalid review")
)
