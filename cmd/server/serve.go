package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"motorent/internal/api"
	"motorent/internal/auth"
	"motorent/internal/db"
	"motorent/internal/logger"
	"motorent/internal/metrics"
	"motorent/internal/repository"
	"motorent/internal/service"
	"motorent/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}

	files, err := storage.Connect(ctx, cfg.Storage, cfg.UploadMaxBytes)
	if err != nil {
		return err
	}

	m := metrics.New()
	tx := repository.NewTransactor(conn, cfg.DBTimeout)
	st := service.NewStores()
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	notifier := service.NewNotifyService(cfg, m)

	reservations := service.NewReservationService(tx, st, cfg.HoldPolicy, cfg.Location, m)
	payments := service.NewPaymentService(tx, st, files, notifier, reservations, m)
	jobs := service.NewJobService(tx, st, reservations, cfg.PendingExpiry, m)

	scheduler := cron.New()
	if err := jobs.Schedule(scheduler, cfg.JobSchedule); err != nil {
		return err
	}
	scheduler.Start()

	router := api.NewRouter(api.Deps{
		Users:        service.NewUserService(tx, st, files, tokens, notifier),
		Motors:       service.NewMotorService(tx, st, files, m),
		Reservations: reservations,
		Payments:     payments,
		Testimonials: service.NewTestimonialService(tx, st),
		Files:        files,
		Tokens:       tokens,
		Metrics:      m,
		MaxUpload:    cfg.UploadMaxBytes,
		CORSOrigins:  cfg.CORSOrigins,
		Ping:         conn.PingContext,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("server running", "port", cfg.Port, "hold_policy", cfg.HoldPolicy, "expiry_job", jobs.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("server shutdown failed", "error", err)
	}
	<-scheduler.Stop().Done()
	notifier.Wait()
	return nil
}
