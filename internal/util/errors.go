package util

import "errors"

var (
	ErrMalformedDocument   = errors.New("malformed pdf document")
	ErrInsufficientPrompts = errors.New("insufficient prompts recovered from model output")

	ErrTransient = errors.New("transient provider error")
	ErrPermanent = errors.New("permanent provider error")
)
