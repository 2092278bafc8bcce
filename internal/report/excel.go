package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

const (
	overviewSheet = "Overview"
	stepsSheet    = "Steps"
	historySheet  = "History"

	timeLayout = "2006-01-02 15:04:05"
)

// ExcelExporter renders a workflow instance and its audit trail into an xlsx
// workbook for download.
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter.
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export builds the workbook and returns its serialized bytes.
func (e *ExcelExporter) Export(inst *entity.WorkflowInstance, history []*entity.WorkflowHistory) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(stepsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	e.fillOverview(f, inst)
	e.fillSteps(f, inst)
	e.fillHistory(f, history)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Exported instance workbook",
		zap.Int64("instance_id", inst.ID),
		zap.Int("history_entries", len(history)))

	return buf.Bytes(), nil
}

func (e *ExcelExporter) fillOverview(f *excelize.File, inst *entity.WorkflowInstance) {
	rows := [][2]string{
		{"Instance ID", fmt.Sprintf("%d", inst.ID)},
		{"Company", inst.CompanyID},
		{"Type", inst.Type},
		{"Name", inst.Name},
		{"Status", inst.Status},
		{"Priority", inst.Priority},
		{"Initiator", inst.InitiatorName},
		{"Related entity", fmt.Sprintf("%s %s", inst.RelatedEntityType, inst.RelatedEntityName)},
		{"Started", inst.StartDate.Format(timeLayout)},
	}
	if inst.EndDate != nil {
		rows = append(rows, [2]string{"Ended", inst.EndDate.Format(timeLayout)})
	}
	for i, row := range rows {
		e.setCell(f, overviewSheet, fmt.Sprintf("A%d", i+1), row[0])
		e.setCell(f, overviewSheet, fmt.Sprintf("B%d", i+1), row[1])
	}
}

func (e *ExcelExporter) fillSteps(f *excelize.File, inst *entity.WorkflowInstance) {
	headers := []string{"#", "Step", "Kind", "Assignee", "Status", "Result", "Started", "Ended", "Comments"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.setCell(f, stepsSheet, cell, h)
	}

	for i, step := range inst.Steps {
		row := i + 2
		assignee := step.Assignee.Name
		if assignee == "" {
			assignee = step.Assignee.Role
		}
		values := []string{
			fmt.Sprintf("%d", i+1),
			step.Name,
			step.Kind,
			assignee,
			step.Status,
			step.Result,
			formatTime(step.StartTime),
			formatTime(step.EndTime),
			step.Comments,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			e.setCell(f, stepsSheet, cell, v)
		}
	}
}

func (e *ExcelExporter) fillHistory(f *excelize.File, history []*entity.WorkflowHistory) {
	headers := []string{"Timestamp", "Action", "Actor", "Role", "Description"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.setCell(f, historySheet, cell, h)
	}

	for i, h := range history {
		row := i + 2
		values := []string{
			h.Timestamp.Format(timeLayout),
			h.Action,
			h.ActorName,
			h.ActorRole,
			h.Description,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			e.setCell(f, historySheet, cell, v)
		}
	}
}

func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
