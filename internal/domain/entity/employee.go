package entity

import "time"

// Employee is the snapshot of a staff record the domain builders need to
// assign steps: identity plus reporting line. The wider HR schema lives
// elsewhere; only these fields feed workflow construction.
type Employee struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Department  string    `json:"department,omitempty"`
	Position    string    `json:"position,omitempty"`
	ManagerID   string    `json:"manager_id,omitempty"`
	ManagerName string    `json:"manager_name,omitempty"`
	LarkOpenID  string    `json:"lark_open_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
