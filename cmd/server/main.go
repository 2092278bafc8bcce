package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/automation"
	"github.com/quanhr/hr-workflow/internal/application/builder"
	"github.com/quanhr/hr-workflow/internal/application/dispatcher"
	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/application/service"
	appworkflow "github.com/quanhr/hr-workflow/internal/application/workflow"
	"github.com/quanhr/hr-workflow/internal/config"
	"github.com/quanhr/hr-workflow/internal/infrastructure/external/lark"
	"github.com/quanhr/hr-workflow/internal/infrastructure/external/openai"
	"github.com/quanhr/hr-workflow/internal/infrastructure/persistence/repository"
	"github.com/quanhr/hr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/quanhr/hr-workflow/internal/infrastructure/worker"
	httpapi "github.com/quanhr/hr-workflow/internal/interfaces/http"
	"github.com/quanhr/hr-workflow/internal/report"
	"github.com/quanhr/hr-workflow/pkg/database"
	"github.com/quanhr/hr-workflow/pkg/utils"
)

func main() {
	// .env is optional; real deployments set env vars directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting HR workflow engine",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction boundary
	txManager := sqlite.NewDB(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	employeeRepo := repository.NewEmployeeRepository(db.DB, logger)

	// Event dispatcher and optional notification fan-out
	events := dispatcher.NewDispatcher(logger)
	defer events.Close()

	engine := appworkflow.NewEngine(instanceRepo, historyRepo, txManager, logger,
		appworkflow.WithDispatcher(events))

	if cfg.Lark.Enabled {
		notifier := lark.NewNotifier(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, employeeRepo, logger)
		service.NewNotificationService(instanceRepo, notifier, logger).Register(events)
	}

	wb, err := builder.New(engine, employeeRepo, builder.Config{
		DeptHeadThreshold: cfg.Workflow.DeptHeadThreshold,
		HRThreshold:       cfg.Workflow.HRThreshold,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize workflow builder", zap.Error(err))
	}

	var reportWriter port.ReportWriter
	if cfg.OpenAI.Enabled {
		reportWriter = openai.NewReportWriter(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.Temperature,
			cfg.OpenAI.MaxTokens,
			logger,
		)
	}

	exporter := report.NewExcelExporter(logger)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := worker.NewManager(logger)
	if cfg.Automation.Enabled {
		automationWorker := worker.NewAutomationWorker(
			engine,
			instanceRepo,
			cfg.Automation.PollInterval,
			cfg.Automation.BatchLimit,
			logger,
		)
		automation.RegisterHandlers(automationWorker, logger)
		workers.Register(automationWorker)
	}
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Debug:        cfg.Logger.Level == "debug",
	}, engine, wb, employeeRepo, exporter, reportWriter, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if err := workers.StopAll(); err != nil {
		logger.Error("Failed to stop workers", zap.Error(err))
	}

	logger.Info("Server exited")
}
