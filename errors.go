package stratum

// Error is a wrapper for specific types of errors for which there is
// no additional information necessary.  Call sites attach context via
// pkg/errors so errors.Is still matches the sentinel.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the errors the orchestrator may return.
var (
	// ErrShapeMismatch reports an input matrix, target vector, or
	// weight matrix whose dimensions disagree with the declared
	// shape, with no override requested.
	ErrShapeMismatch = Error{"shape mismatch"}
	// ErrCardinality reports a caller-supplied list that does not
	// have exactly one entry per layer.
	ErrCardinality = Error{"need exactly one entry per layer"}
	// ErrUnknownActivation reports an activation name absent from
	// the registry.
	ErrUnknownActivation = Error{"unknown activation function"}
	// ErrOrdering reports a call made before its prerequisites: a
	// backward pass before a forward pass, or reading gradients
	// before a backward pass or after a weight update has made them
	// stale.
	ErrOrdering = Error{"result is stale or not yet computed"}
	// ErrNoParams reports a weight update attempted before any
	// update params were set.
	ErrNoParams = Error{"update params not set"}
)
