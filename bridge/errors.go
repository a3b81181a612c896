package bridge

import "errors"

// ErrMaxCycles is returned by Run when a non-zero cycle budget is used up.
var ErrMaxCycles = errors.New("max cycles reached")
