package entity

import "time"

// WorkflowInstance is one running occurrence of a business approval process.
// It owns an ordered list of steps; the order is decided once at creation by
// a domain builder and never changed afterwards. All mutation after creation
// goes through the workflow engine's transition operations.
type WorkflowInstance struct {
	ID           int64  `json:"id"`
	CompanyID    string `json:"company_id"`
	TemplateID   string `json:"template_id,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`

	InitiatorID   string `json:"initiator_id"`
	InitiatorName string `json:"initiator_name"`

	// Linkage back to the business record this workflow governs. At most one
	// active instance may exist per (RelatedEntityID, Type) pair.
	RelatedEntityType string `json:"related_entity_type,omitempty"`
	RelatedEntityID   string `json:"related_entity_id,omitempty"`
	RelatedEntityName string `json:"related_entity_name,omitempty"`

	// FormData carries the domain payload. The engine stores it opaquely and
	// never inspects its contents.
	FormData map[string]interface{} `json:"form_data,omitempty"`

	Steps            []WorkflowStep `json:"steps"`
	CurrentStepIndex int            `json:"current_step_index"`
	Status           string         `json:"status"`
	Priority         string         `json:"priority,omitempty"`

	// Version increments on every transition; conditional updates compare it
	// to detect concurrent writers.
	Version int64 `json:"version"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CurrentStep returns the step at CurrentStepIndex, or nil if the index is
// out of range.
func (i *WorkflowInstance) CurrentStep() *WorkflowStep {
	if i.CurrentStepIndex < 0 || i.CurrentStepIndex >= len(i.Steps) {
		return nil
	}
	return &i.Steps[i.CurrentStepIndex]
}

// IsTerminal returns true once the instance is completed or cancelled; no
// further step transitions are accepted.
func (i *WorkflowInstance) IsTerminal() bool {
	return i.Status == InstanceStatusCompleted || i.Status == InstanceStatusCancelled
}

// StepByID returns the step with the given id and its index, or nil and -1.
func (i *WorkflowInstance) StepByID(stepID string) (*WorkflowStep, int) {
	for idx := range i.Steps {
		if i.Steps[idx].ID == stepID {
			return &i.Steps[idx], idx
		}
	}
	return nil, -1
}
