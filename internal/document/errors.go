package document

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrLockConflict    = errors.New("document is locked by another user")
	ErrMalformedChange = errors.New("malformed change")
	ErrVersionNotFound = errors.New("version not found")
	ErrStaleWrite      = errors.New("document was modified concurrently")
	ErrInvalidInput    = errors.New("invalid input")
)
