package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
}

// Notifier implements port.Notifier over Lark IM. Only specific-actor
// assignments can be messaged; role-pool steps have no single recipient and
// are skipped.
type Notifier struct {
	client    *lark.Client
	employees port.EmployeeRepository
	logger    *zap.Logger
}

// NewNotifier creates a Lark-backed notifier
func NewNotifier(cfg Config, employees port.EmployeeRepository, logger *zap.Logger) *Notifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &Notifier{
		client:    client,
		employees: employees,
		logger:    logger,
	}
}

// NotifyStepAssigned messages the assignee of a newly started step
func (n *Notifier) NotifyStepAssigned(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) error {
	if step.Assignee.IsRole() {
		n.logger.Debug("Skipping notification for role-pool step",
			zap.Int64("instance_id", inst.ID),
			zap.String("role", step.Assignee.Role))
		return nil
	}

	openID, err := n.resolveOpenID(ctx, inst.CompanyID, step.Assignee.UserID)
	if err != nil {
		return err
	}
	if openID == "" {
		n.logger.Warn("Assignee has no Lark open id, skipping notification",
			zap.String("user_id", step.Assignee.UserID))
		return nil
	}

	text := fmt.Sprintf("Workflow %q is waiting on you: step %q", inst.Name, step.Name)
	return n.sendText(ctx, openID, text)
}

// NotifyInstanceFinished messages the initiator about a terminal instance
func (n *Notifier) NotifyInstanceFinished(ctx context.Context, inst *entity.WorkflowInstance) error {
	openID, err := n.resolveOpenID(ctx, inst.CompanyID, inst.InitiatorID)
	if err != nil {
		return err
	}
	if openID == "" {
		return nil
	}

	text := fmt.Sprintf("Workflow %q finished with status %s", inst.Name, inst.Status)
	return n.sendText(ctx, openID, text)
}

func (n *Notifier) resolveOpenID(ctx context.Context, companyID, userID string) (string, error) {
	emp, err := n.employees.GetByID(ctx, companyID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve employee for notification: %w", err)
	}
	if emp == nil {
		return "", nil
	}
	return emp.LarkOpenID, nil
}

func (n *Notifier) sendText(ctx context.Context, openID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send Lark message", zap.String("open_id", openID), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		n.logger.Error("Lark API returned failure",
			zap.String("open_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
