package entity

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Assignee identifies who a step is assigned to: either a specific user or a
// role tag resolved to a concrete actor at action time by the caller. The
// engine only stores the assignment; it never resolves roles itself.
type Assignee struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

// IsRole reports whether the assignment is a role pool rather than a
// specific user.
func (a Assignee) IsRole() bool {
	return a.UserID == "" && a.Role != ""
}

// AssignUser builds a specific-actor assignment.
func AssignUser(userID, name string) Assignee {
	return Assignee{UserID: userID, Name: name}
}

// AssignRole builds a role-pool assignment.
func AssignRole(role string) Assignee {
	return Assignee{Role: role}
}

// WorkflowStep is one unit of work within an instance. An approval step
// requires an explicit approve/reject outcome; a task step is satisfied by a
// completion signal only.
type WorkflowStep struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Assignee Assignee `json:"assignee"`
	Status   string   `json:"status"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Result, Comments and FormData are set only when the step leaves
	// in_progress.
	Result   string                 `json:"result,omitempty"`
	Comments string                 `json:"comments,omitempty"`
	FormData map[string]interface{} `json:"form_data,omitempty"`
}

// NewStepID generates an opaque step identifier. IDs are never reused.
func NewStepID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "step-" + hex.EncodeToString(b)
}

// NewPendingStep builds a step waiting for its turn in the chain.
func NewPendingStep(name, kind string, assignee Assignee) WorkflowStep {
	return WorkflowStep{
		ID:       NewStepID(),
		Name:     name,
		Kind:     kind,
		Assignee: assignee,
		Status:   StepStatusPending,
	}
}
