package physics

import "errors"

var (
	// ErrForeignBody is returned when a joint references a body created by another world.
	ErrForeignBody = errors.New("physics: body belongs to another world")

	// ErrInvalidBody is returned for bodies with a non-finite pose or negative radius.
	ErrInvalidBody = errors.New("physics: invalid body")
)
