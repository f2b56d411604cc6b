package queries

import "errors"

var ErrInvalidInput = errors.New("invalid input")
