package workflow

import (
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// ValidateNewInstance checks a creation spec before anything is persisted.
// The step list must be non-empty with exactly one in_progress step whose
// index equals CurrentStepIndex; steps before it must already be completed
// (builders may pre-advance past auto-resolved steps) and steps after it
// must be pending.
func ValidateNewInstance(inst *entity.WorkflowInstance) error {
	if inst.CompanyID == "" {
		return fmt.Errorf("%w: company id is required", ErrInvalidSpec)
	}
	if inst.Type == "" {
		return fmt.Errorf("%w: workflow type is required", ErrInvalidSpec)
	}
	if inst.InitiatorID == "" {
		return fmt.Errorf("%w: initiator id is required", ErrInvalidSpec)
	}
	if len(inst.Steps) == 0 {
		return fmt.Errorf("%w: step list is empty", ErrInvalidSpec)
	}

	inProgress := -1
	for idx := range inst.Steps {
		step := &inst.Steps[idx]
		if err := validateStep(step); err != nil {
			return err
		}
		switch step.Status {
		case entity.StepStatusInProgress:
			if inProgress >= 0 {
				return fmt.Errorf("%w: more than one in_progress step", ErrInvalidSpec)
			}
			if step.StartTime == nil {
				return fmt.Errorf("%w: in_progress step %q has no start time", ErrInvalidSpec, step.Name)
			}
			inProgress = idx
		case entity.StepStatusCompleted:
			if inProgress >= 0 {
				return fmt.Errorf("%w: completed step %q after the in_progress step", ErrInvalidSpec, step.Name)
			}
		case entity.StepStatusPending:
			if inProgress < 0 {
				return fmt.Errorf("%w: pending step %q before the in_progress step", ErrInvalidSpec, step.Name)
			}
		}
	}

	if inProgress < 0 {
		return fmt.Errorf("%w: no in_progress step", ErrInvalidSpec)
	}
	if inProgress != inst.CurrentStepIndex {
		return fmt.Errorf("%w: in_progress step index %d does not match current step index %d",
			ErrInvalidSpec, inProgress, inst.CurrentStepIndex)
	}
	return nil
}

func validateStep(step *entity.WorkflowStep) error {
	if step.ID == "" {
		return fmt.Errorf("%w: step %q has no id", ErrInvalidSpec, step.Name)
	}
	if step.Name == "" {
		return fmt.Errorf("%w: step %s has no name", ErrInvalidSpec, step.ID)
	}
	switch step.Kind {
	case entity.StepKindApproval, entity.StepKindTask:
	default:
		return fmt.Errorf("%w: step %q has unknown kind %q", ErrInvalidSpec, step.Name, step.Kind)
	}
	switch step.Status {
	case entity.StepStatusPending, entity.StepStatusInProgress, entity.StepStatusCompleted:
	default:
		return fmt.Errorf("%w: step %q has unknown status %q", ErrInvalidSpec, step.Name, step.Status)
	}
	if step.Assignee.UserID == "" && step.Assignee.Role == "" {
		return fmt.Errorf("%w: step %q has no assignee", ErrInvalidSpec, step.Name)
	}
	return nil
}

// CheckActiveInvariant verifies the single-in_progress-step invariant on an
// active instance: the step at CurrentStepIndex is the only in_progress one,
// everything before it is completed and everything after it pending. An
// active instance paused between steps (no in_progress step) is also legal.
func CheckActiveInvariant(inst *entity.WorkflowInstance) error {
	if inst.Status != entity.InstanceStatusActive {
		return nil
	}
	if inst.CurrentStepIndex < 0 || inst.CurrentStepIndex >= len(inst.Steps) {
		return fmt.Errorf("current step index %d out of range [0,%d)", inst.CurrentStepIndex, len(inst.Steps))
	}
	for idx := range inst.Steps {
		status := inst.Steps[idx].Status
		switch {
		case idx < inst.CurrentStepIndex:
			if status != entity.StepStatusCompleted {
				return fmt.Errorf("step %d before current is %s, want completed", idx, status)
			}
		case idx == inst.CurrentStepIndex:
			if status != entity.StepStatusInProgress && status != entity.StepStatusCompleted {
				return fmt.Errorf("current step %d is %s", idx, status)
			}
		default:
			if status != entity.StepStatusPending {
				return fmt.Errorf("step %d after current is %s, want pending", idx, status)
			}
		}
	}
	return nil
}
