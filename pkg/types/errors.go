package types

import "errors"

// ErrComputation is returned when the breakpoint threshold cannot be computed,
// i.e. there are fewer than two units and so no distances.
var ErrComputation = errors.New("computation error: breakpoint threshold needs at least one distance")
