package acm

import "errors"

var (
	ErrNotACMFile      = errors.New("not an ACM file")
	ErrInvalidGeometry = errors.New("invalid block geometry")
	ErrInvalidData     = errors.New("invalid bitstream data")
)
