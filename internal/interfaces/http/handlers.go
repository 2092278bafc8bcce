package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/builder"
	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/application/workflow"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/report"
)

const companyIDKey = "company_id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine       workflow.Engine
	builder      *builder.Builder
	employees    port.EmployeeRepository
	exporter     *report.ExcelExporter
	reportWriter port.ReportWriter
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance. reportWriter may be nil when
// the narrative report feature is disabled.
func NewHandlers(
	engine workflow.Engine,
	wb *builder.Builder,
	employees port.EmployeeRepository,
	exporter *report.ExcelExporter,
	reportWriter port.ReportWriter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:       engine,
		builder:      wb,
		employees:    employees,
		exporter:     exporter,
		reportWriter: reportWriter,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "hr-workflow",
	})
}

func companyID(c *gin.Context) string {
	return c.GetString(companyIDKey)
}

// actorFromHeaders resolves the acting user from request headers. Identity
// verification happens upstream; these headers arrive already authenticated.
func actorFromHeaders(c *gin.Context) (workflow.Actor, bool) {
	actor := workflow.Actor{
		ID:   c.GetHeader("X-Actor-ID"),
		Name: c.GetHeader("X-Actor-Name"),
		Role: c.GetHeader("X-Actor-Role"),
	}
	return actor, actor.ID != ""
}

func instanceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid instance id"})
		return 0, false
	}
	return id, true
}

func requireActor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := actorFromHeaders(c)
	if !ok {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "X-Actor-ID header is required"})
	}
	return actor, ok
}

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	var query struct {
		Type            string `form:"type"`
		RelatedEntityID string `form:"related_entity_id"`
		Status          string `form:"status"`
		Limit           int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}

	instances, err := h.engine.ListInstances(c.Request.Context(), port.InstanceFilter{
		CompanyID:       companyID(c),
		Type:            query.Type,
		RelatedEntityID: query.RelatedEntityID,
		Status:          query.Status,
		Limit:           query.Limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// GetWorkflow handles GET /api/v1/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}

	inst, err := h.engine.GetInstance(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// GetWorkflowHistory handles GET /api/v1/workflows/:id/history
func (h *Handlers) GetWorkflowHistory(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}

	history, err := h.engine.GetHistory(c.Request.Context(), companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// AdvanceStepRequest is the body of POST /workflows/:id/advance
type AdvanceStepRequest struct {
	StepID        string                 `json:"step_id" binding:"required"`
	Result        string                 `json:"result"`
	Comments      string                 `json:"comments"`
	FormData      map[string]interface{} `json:"form_data"`
	AdvanceToNext *bool                  `json:"advance_to_next"`
}

// AdvanceStep handles POST /api/v1/workflows/:id/advance
func (h *Handlers) AdvanceStep(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req AdvanceStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	advance := true
	if req.AdvanceToNext != nil {
		advance = *req.AdvanceToNext
	}

	inst, err := h.engine.AdvanceStep(c.Request.Context(), workflow.AdvanceStepRequest{
		CompanyID:     companyID(c),
		InstanceID:    id,
		StepID:        req.StepID,
		Actor:         actor,
		Result:        req.Result,
		Comments:      req.Comments,
		FormData:      req.FormData,
		AdvanceToNext: advance,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// ApproveStepRequest is the body of POST /workflows/:id/approve
type ApproveStepRequest struct {
	StepID   string `json:"step_id" binding:"required"`
	Comments string `json:"comments"`
}

// ApproveStep handles POST /api/v1/workflows/:id/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req ApproveStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.engine.ApproveStep(c.Request.Context(), workflow.ApproveStepRequest{
		CompanyID:  companyID(c),
		InstanceID: id,
		StepID:     req.StepID,
		Actor:      actor,
		Comments:   req.Comments,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// RejectStepRequest is the body of POST /workflows/:id/reject
type RejectStepRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectStep handles POST /api/v1/workflows/:id/reject
func (h *Handlers) RejectStep(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req RejectStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.engine.RejectStep(c.Request.Context(), workflow.RejectStepRequest{
		CompanyID:  companyID(c),
		InstanceID: id,
		Actor:      actor,
		Reason:     req.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// ResumeWorkflow handles POST /api/v1/workflows/:id/resume
func (h *Handlers) ResumeWorkflow(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	inst, err := h.engine.ResumeInstance(c.Request.Context(), workflow.ResumeRequest{
		CompanyID:  companyID(c),
		InstanceID: id,
		Actor:      actor,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// UpdateWorkflowRequest is the body of PATCH /workflows/:id
type UpdateWorkflowRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
}

// UpdateWorkflow handles PATCH /api/v1/workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	inst, err := h.engine.UpdateInstance(c.Request.Context(), workflow.UpdateRequest{
		CompanyID:   companyID(c),
		InstanceID:  id,
		Actor:       actor,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// ExportWorkflow handles GET /api/v1/workflows/:id/export
func (h *Handlers) ExportWorkflow(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	inst, err := h.engine.GetInstance(ctx, companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	history, err := h.engine.GetHistory(ctx, companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.exporter.Export(inst, history)
	if err != nil {
		h.logger.Error("Failed to export workbook", zap.Int64("instance_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export workbook"})
		return
	}

	filename := "workflow-" + strconv.FormatInt(id, 10) + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ReportWorkflow handles GET /api/v1/workflows/:id/report
func (h *Handlers) ReportWorkflow(c *gin.Context) {
	if h.reportWriter == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "report generation is not configured"})
		return
	}

	id, ok := instanceID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	inst, err := h.engine.GetInstance(ctx, companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	history, err := h.engine.GetHistory(ctx, companyID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	summary, err := h.reportWriter.WriteSummary(ctx, inst, history)
	if err != nil {
		h.logger.Error("Failed to generate report", zap.Int64("instance_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: "failed to generate report"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"instance_id": id,
		"summary":     summary,
	}})
}

// CreateEmployeeRequest is the body of POST /employees
type CreateEmployeeRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Department  string `json:"department"`
	Position    string `json:"position"`
	ManagerID   string `json:"manager_id"`
	ManagerName string `json:"manager_name"`
	LarkOpenID  string `json:"lark_open_id"`
}

// CreateEmployee handles POST /api/v1/employees
func (h *Handlers) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	emp := &entity.Employee{
		ID:          req.ID,
		CompanyID:   companyID(c),
		Name:        req.Name,
		Department:  req.Department,
		Position:    req.Position,
		ManagerID:   req.ManagerID,
		ManagerName: req.ManagerName,
		LarkOpenID:  req.LarkOpenID,
	}
	if err := h.employees.Create(c.Request.Context(), emp); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: emp})
}

// GetEmployee handles GET /api/v1/employees/:id
func (h *Handlers) GetEmployee(c *gin.Context) {
	emp, err := h.employees.GetByID(c.Request.Context(), companyID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if emp == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "employee not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: emp})
}
