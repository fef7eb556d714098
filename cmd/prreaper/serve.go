package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/prreaper/internal/adapter/driving/http"
	"github.com/ericfisherdev/prreaper/internal/application"
	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run both operations on their schedules and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve runs the scheduler and HTTP API until ctx is canceled (SIGINT or
// SIGTERM), then shuts both down.
func serve(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	recorder := metrics.NewRecorder()

	runner, err := a.newRunner(ctx, recorder)
	if err != nil {
		return err
	}

	scheduler := application.NewScheduler(runner, []application.Schedule{
		{Operation: model.OperationWarn, Spec: a.cfg.WarnSchedule},
		{Operation: model.OperationExecute, Spec: a.cfg.ExecuteSchedule},
	}, a.logger)

	policy := a.policy()
	apiHandler := httphandler.NewHandler(
		a.records,
		a.runs,
		runner,
		a.store,
		policy.Messages,
		policy.WarningThresholdDays,
		a.logger,
	)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httphandler.NewRouter(apiHandler, recorder.Handler(), a.logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual runs are synchronous and may take minutes on large scopes.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- scheduler.Start(ctx)
	}()

	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	a.logger.Info("prreaper started",
		"listen_addr", a.cfg.ListenAddr,
		"warn_schedule", a.cfg.WarnSchedule,
		"execute_schedule", a.cfg.ExecuteSchedule,
	)

	var startErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		// Waits for in-flight scheduled runs.
		startErr = <-schedErr
	case startErr = <-schedErr:
		// Start returns early only on an invalid schedule.
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("prreaper stopped")
	return startErr
}
