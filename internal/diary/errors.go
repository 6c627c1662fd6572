package diary

import "errors"

// ErrInvalid marks input validation failures. Specific causes wrap it.
var ErrInvalid = errors.New("invalid input")
