package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanhr/hr-workflow/internal/application/builder"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// StepSpec describes one caller-supplied step. Supplying custom steps fully
// replaces the computed default chain.
type StepSpec struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Assignee struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Role   string `json:"role"`
	} `json:"assignee"`
}

func toSteps(specs []StepSpec) []entity.WorkflowStep {
	if len(specs) == 0 {
		return nil
	}
	steps := make([]entity.WorkflowStep, 0, len(specs))
	for _, s := range specs {
		var assignee entity.Assignee
		if s.Assignee.UserID != "" {
			assignee = entity.AssignUser(s.Assignee.UserID, s.Assignee.Name)
		} else {
			assignee = entity.AssignRole(s.Assignee.Role)
		}
		steps = append(steps, entity.NewPendingStep(s.Name, s.Kind, assignee))
	}
	return steps
}

// PointsGrantBody is the body of POST /workflows/points-grant
type PointsGrantBody struct {
	EmployeeID      string     `json:"employee_id" binding:"required"`
	Amount          int64      `json:"amount" binding:"required"`
	Reason          string     `json:"reason"`
	Category        string     `json:"category"`
	RelatedEntityID string     `json:"related_entity_id"`
	CustomSteps     []StepSpec `json:"custom_steps"`
}

// CreatePointsGrant handles POST /api/v1/workflows/points-grant
func (h *Handlers) CreatePointsGrant(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body PointsGrantBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.builder.BuildPointsGrant(c.Request.Context(), builder.PointsGrantRequest{
		CompanyID:       companyID(c),
		EmployeeID:      body.EmployeeID,
		Amount:          body.Amount,
		Reason:          body.Reason,
		Category:        body.Category,
		RelatedEntityID: body.RelatedEntityID,
		InitiatorID:     actor.ID,
		InitiatorName:   actor.Name,
		CustomSteps:     toSteps(body.CustomSteps),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}

// PointsRedemptionBody is the body of POST /workflows/points-redemption
type PointsRedemptionBody struct {
	EmployeeID      string     `json:"employee_id" binding:"required"`
	Amount          int64      `json:"amount" binding:"required"`
	RewardName      string     `json:"reward_name" binding:"required"`
	RelatedEntityID string     `json:"related_entity_id"`
	CustomSteps     []StepSpec `json:"custom_steps"`
}

// CreatePointsRedemption handles POST /api/v1/workflows/points-redemption
func (h *Handlers) CreatePointsRedemption(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body PointsRedemptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.builder.BuildPointsRedemption(c.Request.Context(), builder.PointsRedemptionRequest{
		CompanyID:       companyID(c),
		EmployeeID:      body.EmployeeID,
		Amount:          body.Amount,
		RewardName:      body.RewardName,
		RelatedEntityID: body.RelatedEntityID,
		InitiatorID:     actor.ID,
		InitiatorName:   actor.Name,
		CustomSteps:     toSteps(body.CustomSteps),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}

// RuleChangeBody is the body of POST /workflows/rule-change
type RuleChangeBody struct {
	RuleID        string     `json:"rule_id" binding:"required"`
	RuleName      string     `json:"rule_name"`
	ChangeSummary string     `json:"change_summary"`
	CustomSteps   []StepSpec `json:"custom_steps"`
}

// CreateRuleChange handles POST /api/v1/workflows/rule-change
func (h *Handlers) CreateRuleChange(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body RuleChangeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.builder.BuildRuleChange(c.Request.Context(), builder.RuleChangeRequest{
		CompanyID:     companyID(c),
		RuleID:        body.RuleID,
		RuleName:      body.RuleName,
		ChangeSummary: body.ChangeSummary,
		InitiatorID:   actor.ID,
		InitiatorName: actor.Name,
		CustomSteps:   toSteps(body.CustomSteps),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}

// PromotionBody is the body of POST /workflows/promotion
type PromotionBody struct {
	EmployeeID    string     `json:"employee_id" binding:"required"`
	ToPosition    string     `json:"to_position" binding:"required"`
	EffectiveDate string     `json:"effective_date"`
	Justification string     `json:"justification"`
	CustomSteps   []StepSpec `json:"custom_steps"`
}

// CreatePromotion handles POST /api/v1/workflows/promotion
func (h *Handlers) CreatePromotion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body PromotionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.builder.BuildPromotion(c.Request.Context(), builder.PromotionRequest{
		CompanyID:     companyID(c),
		EmployeeID:    body.EmployeeID,
		ToPosition:    body.ToPosition,
		EffectiveDate: body.EffectiveDate,
		Justification: body.Justification,
		InitiatorID:   actor.ID,
		InitiatorName: actor.Name,
		CustomSteps:   toSteps(body.CustomSteps),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}

// OffboardingBody is the body of POST /workflows/offboarding
type OffboardingBody struct {
	EmployeeID     string     `json:"employee_id" binding:"required"`
	LastWorkingDay string     `json:"last_working_day" binding:"required"`
	Reason         string     `json:"reason"`
	CustomSteps    []StepSpec `json:"custom_steps"`
}

// CreateOffboarding handles POST /api/v1/workflows/offboarding
func (h *Handlers) CreateOffboarding(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body OffboardingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.builder.BuildOffboarding(c.Request.Context(), builder.OffboardingRequest{
		CompanyID:      companyID(c),
		EmployeeID:     body.EmployeeID,
		LastWorkingDay: body.LastWorkingDay,
		Reason:         body.Reason,
		InitiatorID:    actor.ID,
		InitiatorName:  actor.Name,
		CustomSteps:    toSteps(body.CustomSteps),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}
