package entity

// Workflow type tags. The engine never branches on these; they identify
// which domain builder produced an instance and scope the duplicate-active
// check per business entity.
const (
	WorkflowTypePointsGrant      = "points_approval"
	WorkflowTypePointsRedemption = "points_redemption"
	WorkflowTypeRuleChange       = "points_rule_change"
	WorkflowTypePromotion        = "promotion"
	WorkflowTypeOffboarding      = "offboarding"
)

// Step kind constants
const (
	StepKindApproval = "approval"
	StepKindTask     = "task"
)

// Step status constants
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
)

// Step result constants
const (
	StepResultApproved  = "approved"
	StepResultRejected  = "rejected"
	StepResultCompleted = "completed"
)

// Instance status constants
const (
	InstanceStatusActive    = "active"
	InstanceStatusCompleted = "completed"
	InstanceStatusCancelled = "cancelled"
)

// Priority constants (display/sorting only)
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Role tags used for pool-resolved step assignment. Resolution of a role to
// a concrete actor happens outside the engine, at action time.
const (
	RoleDepartmentManager = "department_manager"
	RoleDepartmentHead    = "department_head"
	RoleHR                = "hr"
	RoleManagement        = "management"
	RoleIT                = "it"
	RoleSystem            = "system"
)

// History action constants
const (
	HistoryActionCreated       = "created"
	HistoryActionStepCompleted = "step_completed"
	HistoryActionRejected      = "rejected"
	HistoryActionResumed       = "resumed"
	HistoryActionUpdated       = "updated"
)
