package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/infrastructure/external/openai"
)

// Smoke test for the OpenAI report writer: generates a narrative summary of
// a fabricated instance and prints it.
func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	model := flag.String("model", "gpt-4o-mini", "Model to use")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	_ = gotenv.Load()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided")
		fmt.Fprintln(os.Stderr, "Usage: test-gpt-connection --key sk-... [--model gpt-4o-mini] [--timeout 30s]")
		os.Exit(1)
	}

	fmt.Println("=== Report Writer Connection Test ===")
	fmt.Printf("  Model: %s\n", *model)
	fmt.Printf("  Timeout: %v\n", *timeout)
	fmt.Println()

	writer := openai.NewReportWriter(*apiKey, *model, 0.2, 512, logger)

	inst, history := sampleInstance()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	summary, err := writer.WriteSummary(ctx, inst, history)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED after %v: %v\n", time.Since(start), err)
		os.Exit(1)
	}

	fmt.Printf("OK in %v\n\n%s\n", time.Since(start), summary)
}

func sampleInstance() (*entity.WorkflowInstance, []*entity.WorkflowHistory) {
	created := time.Now().Add(-48 * time.Hour)
	approved := created.Add(3 * time.Hour)
	done := created.Add(26 * time.Hour)

	steps := []entity.WorkflowStep{
		entity.NewPendingStep("Manager approval", entity.StepKindApproval, entity.AssignUser("emp-002", "Dana Wu")),
		entity.NewPendingStep("Grant points", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
	}
	steps[0].Status = entity.StepStatusCompleted
	steps[0].Result = entity.StepResultApproved
	steps[0].StartTime = &created
	steps[0].EndTime = &approved
	steps[1].Status = entity.StepStatusCompleted
	steps[1].Result = entity.StepResultCompleted
	steps[1].StartTime = &approved
	steps[1].EndTime = &done

	inst := &entity.WorkflowInstance{
		ID:            42,
		CompanyID:     "smoke-test",
		Type:          entity.WorkflowTypePointsGrant,
		Name:          "Points grant for Alex Kim (500 pts)",
		InitiatorID:   "emp-001",
		InitiatorName: "Alex Kim",
		Status:        entity.InstanceStatusCompleted,
		Steps:         steps,
		CurrentStepIndex: 1,
		StartDate:     created,
		EndDate:       &done,
	}

	history := []*entity.WorkflowHistory{
		{InstanceID: 42, Action: entity.HistoryActionCreated, ActorName: "Alex Kim", Description: "Workflow created", Timestamp: created},
		{InstanceID: 42, Action: entity.HistoryActionStepCompleted, ActorName: "Dana Wu", Description: "Manager approval approved", Timestamp: approved},
		{InstanceID: 42, Action: entity.HistoryActionStepCompleted, ActorName: "Automation", Description: "Grant points completed", Timestamp: done},
	}
	return inst, history
}
