package core

import "errors"

var (
	ErrEmptySeries     = errors.New("empty price series")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrUnorderedSeries = errors.New("timestamps are not strictly increasing")
	ErrUnknownField    = errors.New("unknown series field")
)
