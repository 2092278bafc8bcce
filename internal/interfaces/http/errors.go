package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
)

// writeError maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 with the detail kept server-side.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domainwf.ErrInstanceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainwf.ErrInvalidSpec),
		errors.Is(err, domainwf.ErrNotApprovalStep):
		status = http.StatusBadRequest
	case errors.Is(err, domainwf.ErrDuplicateActiveWorkflow),
		errors.Is(err, domainwf.ErrInstanceTerminal),
		errors.Is(err, domainwf.ErrStepMismatch):
		status = http.StatusConflict
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
