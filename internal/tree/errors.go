package tree

import (
	"errors"
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

var (
	ErrDuplicateNumber  = errors.New("tree: duplicate sibling number")
	ErrNegativeNumber   = errors.New("tree: element numbers must be non-negative")
	ErrInvalidParent    = errors.New("tree: parent must be a stored node")
	ErrTypeMismatch     = errors.New("tree: value type mismatch")
	ErrOutOfRange       = errors.New("tree: value out of range")
	ErrInvalidRequest   = errors.New("tree: invalid request")
	ErrInvalidMatrix    = errors.New("tree: invalid matrix configuration")
	ErrInvalidParameter = errors.New("tree: invalid parameter configuration")
	ErrArgumentMismatch = errors.New("tree: invocation arguments do not match signature")
	ErrResultMismatch   = errors.New("tree: invocation result does not match signature")
	ErrNoInvoker        = errors.New("tree: function has no invoker")
	ErrReleased         = errors.New("tree: element handle released")
)

// PathError records the element an operation failed on.
type PathError struct {
	Path glow.OID
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%v at [%s]", e.Err, e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathError(path glow.OID, err error) error {
	return &PathError{Path: path.Clone(), Err: err}
}
