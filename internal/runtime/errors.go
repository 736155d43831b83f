package runtime

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

var (
	// ErrOrphanElse is returned when an Else is not preceded by an If or another Else.
	ErrOrphanElse = errors.New("else without a preceding if")
	// ErrUnknownExpression is returned for expression variants the generator cannot build.
	ErrUnknownExpression = errors.New("unknown expression")
	// ErrAlreadyGenerated is returned when Generate is called twice.
	ErrAlreadyGenerated = errors.New("tree already generated")
)

// InternalError reports a malformed template or a broken tree invariant
// found while building or re-evaluating a node.
type InternalError struct {
	Op   string
	Node domain.NodeID
	Err  error
}

func (e *InternalError) Error() string {
	if e.Node.IsZero() {
		return fmt.Sprintf("runtime: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("runtime: %s node %s: %v", e.Op, e.Node, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
