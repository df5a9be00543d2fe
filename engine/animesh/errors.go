package animesh

import "errors"

// ErrInvalidArgument is returned (wrapped) when factory or instance data violates the mesh contract:
// mismatched buffer lengths, out-of-range bone ids or indices, duplicate names, or non-finite weights.
var ErrInvalidArgument = errors.New("animesh: invalid argument")
