package main

import (
	"context"
	"os"
	"time"

	"financeiro/internal/backend"
	"financeiro/internal/cli"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/session"
	"financeiro/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting financeiro", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to build backend config", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}

	// Sign-in loads run under appCtx so shutdown can cut them short
	appCtx, appCancel := context.WithCancel(context.Background())
	lifecycle := session.Bind(appCtx, res.Gate, res.Store, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if res.Gate.Authenticated() {
			_ = res.Gate.Logout(logoutCtx)
		}

		appCancel()
		lifecycle.Close()
		if err := res.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	})

	signIn(ctx, logger, res.Gate, core.Credentials{Username: cfg.APIUsername, Password: cfg.APIPassword})
	lifecycle.Wait()
	logSummary(ctx, logger, res)

	var consumer worker.Consumer
	if res.AMQP != nil {
		consumer = res.AMQP
	}
	refresher := worker.NewRefreshWorker(res.Orchestrator, res.Gate, cfg.RefreshInterval, logger)
	if err := refresher.Run(ctx, consumer); err != nil {
		logger.Error("Refresh worker stopped", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("financeiro stopped gracefully", log.FieldOperation, log.OpShutdown)
}

// signIn logs in with the configured credentials, or picks up an existing
// session when none are configured.
func signIn(ctx context.Context, logger *log.Logger, gate *session.HTTPGate, creds core.Credentials) {
	if creds.Username == "" {
		ok, err := gate.Check(ctx)
		if err != nil {
			logger.Warn("Could not check session", log.FieldError, err)
		} else if !ok {
			logger.Warn("No API credentials configured and no active session; store stays empty")
		}
		return
	}

	if _, err := gate.Login(ctx, creds); err != nil {
		logger.Error("Login failed, store stays empty", log.FieldError, err)
	}
}

func logSummary(ctx context.Context, logger *log.Logger, res *backend.BackendResult) {
	if !res.Gate.Authenticated() {
		return
	}

	st := res.Store
	categories := st.CategorySet()
	fields := []any{
		"accounts", len(st.Accounts()),
		"credit_cards", len(st.CreditCards()),
		"income_categories", len(categories.Income),
		"expense_categories", len(categories.Expense),
	}
	if dash, ok := st.Dashboard(); ok {
		fields = append(fields, "current_balance", dash.CurrentBalance.String())
	}
	if points, err := st.Projections(ctx, 0); err == nil {
		fields = append(fields, "projection_months", len(points))
	}
	today := core.Today()
	month := core.MonthRange(today.Year(), int(today.Month()))
	if report, err := st.ReportSummary(ctx, month, core.GroupByCategory); err == nil {
		fields = append(fields, "expense_categories_this_month", len(report.ExpensesByCategory))
	}
	logger.InfoContext(ctx, "Store ready", fields...)
}
