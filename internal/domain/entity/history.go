package entity

import "time"

// WorkflowHistory is one immutable audit record of a workflow transition.
// Records are created, never updated or deleted; together they are the
// durable trail for reconstructing what happened and when.
type WorkflowHistory struct {
	ID           int64                  `json:"id"`
	InstanceID   int64                  `json:"instance_id"`
	CompanyID    string                 `json:"company_id"`
	WorkflowType string                 `json:"workflow_type"`
	Action       string                 `json:"action"`
	ActorID      string                 `json:"actor_id"`
	ActorName    string                 `json:"actor_name"`
	ActorRole    string                 `json:"actor_role,omitempty"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}
