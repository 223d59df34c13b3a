package domain

import "errors"

// Business rejections. These are expected outcomes, not server errors: the
// repository returns them from inside a rolled-back transaction and the HTTP
// layer maps them to 4xx responses without logging.
var (
	ErrValidation        = errors.New("invalid request")
	ErrItemNotFound      = errors.New("item not found")
	ErrNotOwned          = errors.New("item not owned")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrInsufficientFunds = errors.New("not enough FutureCoins")
)
