package domain

import "errors"

// Errors for the order review workflow
var (
	ErrLineNotFound         = errors.New("order line not found")
	ErrDuplicateLine        = errors.New("order has more than one line for the item")
	ErrInvalidQuantity      = errors.New("quantity must not be negative")
	ErrOperationInProgress  = errors.New("another submission or release is in progress")
	ErrNoOrderLoaded        = errors.New("no order loaded")
	ErrReviewFailed         = errors.New("order review failed")
	ErrApproveFailed        = errors.New("order approval failed")
	ErrPendingChanges       = errors.New("order has unsubmitted changes")
	ErrReleaseCancelled     = errors.New("release cancelled")
	ErrReleaseUnsupported   = errors.New("order kind does not support release")
	ErrNothingToAcknowledge = errors.New("no successful release to acknowledge")
	ErrMissingIdentifier    = errors.New("line is missing a required identifier")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrMissingOrg           = errors.New("organization is required")
	ErrNotLoggedIn          = errors.New("not logged in")
)

// Errors for file ingestion
var (
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrEmptyFile         = errors.New("file has no data rows")
	ErrMissingForecastID = errors.New("missing ForecastId")
	ErrMissingLocationID = errors.New("missing LocationId")
	ErrProjectionFailed  = errors.New("forecast saved but projections failed")
)
