package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceCreated   Type = "workflow.instance_created"
	TypeStepAdvanced      Type = "workflow.step_advanced"
	TypeInstanceCompleted Type = "workflow.instance_completed"
	TypeInstanceCancelled Type = "workflow.instance_cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceCreated,
		TypeStepAdvanced,
		TypeInstanceCompleted,
		TypeInstanceCancelled:
		return true
	default:
		return false
	}
}
