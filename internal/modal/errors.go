package modal

import "errors"

var (
	ErrBusy              = errors.New("modal: a request is already in flight")
	ErrEmptyInput        = errors.New("modal: input is empty")
	ErrNotOpen           = errors.New("modal: panel is not open")
	ErrInvalidTransition = errors.New("modal: invalid transition")
	ErrNotImage          = errors.New("modal: not a valid image")
)
