package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/config"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/infrastructure/external/lark"
)

// Isolated smoke test for Lark step-assignment notifications. Sends one
// message to the given open_id without touching the database.
func main() {
	openID := flag.String("open-id", "", "Lark open_id of the test recipient (ou_...)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	_ = gotenv.Load()

	if *openID == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-notification --open-id ou_xxx [--config configs/config.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" {
		fmt.Fprintln(os.Stderr, "Lark credentials are not configured (LARK_APP_ID / LARK_APP_SECRET)")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	notifier := lark.NewNotifier(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
	}, stubEmployees{openID: *openID}, logger)

	now := time.Now()
	step := entity.NewPendingStep("Manager approval", entity.StepKindApproval,
		entity.AssignUser("test-user", "Test Recipient"))
	step.Status = entity.StepStatusInProgress
	step.StartTime = &now

	inst := &entity.WorkflowInstance{
		ID:            0,
		CompanyID:     "smoke-test",
		Type:          entity.WorkflowTypePointsGrant,
		Name:          "Notification smoke test",
		InitiatorName: "test-notification",
		Status:        entity.InstanceStatusActive,
		Steps:         []entity.WorkflowStep{step},
		StartDate:     now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := notifier.NotifyStepAssigned(ctx, inst, &inst.Steps[0]); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK: message sent, check the recipient's Lark client")
}

// stubEmployees resolves every lookup to the command-line open_id
type stubEmployees struct {
	openID string
}

func (s stubEmployees) Create(ctx context.Context, emp *entity.Employee) error { return nil }

func (s stubEmployees) GetByID(ctx context.Context, companyID, id string) (*entity.Employee, error) {
	return &entity.Employee{
		ID:         id,
		CompanyID:  companyID,
		Name:       "Test Recipient",
		LarkOpenID: s.openID,
	}, nil
}
