package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ReportWriter implements port.ReportWriter using OpenAI chat completions.
// It turns an instance's audit trail into a short narrative for HR reports.
type ReportWriter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewReportWriter creates a new OpenAI report writer
func NewReportWriter(apiKey, model string, temperature float32, maxTokens int, logger *zap.Logger) *ReportWriter {
	return &ReportWriter{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// WriteSummary synthesizes a narrative of the workflow from its history
func (w *ReportWriter) WriteSummary(ctx context.Context, inst *entity.WorkflowInstance, history []*entity.WorkflowHistory) (string, error) {
	w.logger.Debug("Writing workflow summary",
		zap.Int64("instance_id", inst.ID),
		zap.Int("history_entries", len(history)))

	req := openai.ChatCompletionRequest{
		Model:       w.model,
		Temperature: w.temperature,
		MaxTokens:   w.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an HR operations assistant. Summarize the approval " +
					"workflow below in a short factual paragraph: who initiated it, " +
					"which steps happened in what order, and how it ended. Do not invent details.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(inst, history),
			},
		},
	}

	resp, err := w.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(inst *entity.WorkflowInstance, history []*entity.WorkflowHistory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s (type %s, status %s, priority %s)\n", inst.Name, inst.Type, inst.Status, inst.Priority)
	fmt.Fprintf(&b, "Initiated by %s on %s\n", inst.InitiatorName, inst.StartDate.Format("2006-01-02"))
	b.WriteString("Audit trail:\n")
	for _, h := range history {
		fmt.Fprintf(&b, "- [%s] %s by %s: %s\n",
			h.Timestamp.Format("2006-01-02 15:04"), h.Action, h.ActorName, h.Description)
	}
	return b.String()
}

// Verify interface compliance
var _ port.ReportWriter = (*ReportWriter)(nil)
