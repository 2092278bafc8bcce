package workflow

import "errors"

var (
	// ErrInvalidSpec is returned when a creation spec carries a malformed
	// step list. Nothing is persisted.
	ErrInvalidSpec = errors.New("invalid workflow spec")

	// ErrDuplicateActiveWorkflow is returned when an active instance already
	// exists for the target (related entity, type) pair.
	ErrDuplicateActiveWorkflow = errors.New("active workflow already exists for entity")

	// ErrInstanceNotFound is returned for operations on a non-existent instance.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceTerminal is returned for transitions on a completed or
	// cancelled instance.
	ErrInstanceTerminal = errors.New("workflow instance is terminal")

	// ErrStepMismatch is returned when the supplied step id is not the
	// current step, including when a concurrent writer won the transition.
	ErrStepMismatch = errors.New("step is not the current step")

	// ErrNotApprovalStep is returned when approve is called on a task step.
	ErrNotApprovalStep = errors.New("current step is not an approval step")
)
