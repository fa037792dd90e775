package page

import "github.com/pkg/errors"

var (
	// ErrPagesExhausted is returned by AcquirePage when every page is already in use
	ErrPagesExhausted = errors.New("all pages already allocated")
	// ErrUnknownPage is returned by ReleasePage when the page is not currently held from this provider
	ErrUnknownPage = errors.New("page was not acquired from this provider")
)
