package trading

import "errors"

var (
	// ErrOrderRejected is returned when a venue refuses an order
	ErrOrderRejected = errors.New("order rejected by venue")
	// ErrSubmitterUnavailable is returned when a signing credential is set
	// but no transaction submitter is wired for the venue
	ErrSubmitterUnavailable = errors.New("no transaction submitter configured")
	// ErrUnknownVenue is returned when settings name a venue with no executor
	ErrUnknownVenue = errors.New("unknown venue")
)
