package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrPeriodNotFound indicates no fiscal period covers the posting date.
	ErrPeriodNotFound = errors.New("accounting: no fiscal period for date")
	// ErrPeriodClosed indicates the fiscal period does not accept postings.
	ErrPeriodClosed = errors.New("accounting: fiscal period closed")
	// ErrDuplicateReference indicates a non-voided entry already exists for the source.
	ErrDuplicateReference = errors.New("accounting: source already journalled")
	// ErrMissingAccount indicates a required account could not be resolved.
	ErrMissingAccount = errors.New("accounting: account missing or not postable")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed from the current status.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrDateOutOfRange indicates journal date mismatch.
	ErrDateOutOfRange = errors.New("accounting: date outside period")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)
