package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	"github.com/robertarktes/travel-bookings/internal/config"
	"github.com/robertarktes/travel-bookings/internal/observability"
)

const sweepInterval = time.Minute

func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		logger.Error("failed to connect to cockroachdb", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := crdb.NewRepository(pool)

	logger.Info("starting sweep worker")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep worker stopped")
			return
		case <-ticker.C:
			sweep(ctx, repo, cfg.ReconcileGrace, logger)
		}
	}
}

func sweep(ctx context.Context, repo *crdb.Repository, grace time.Duration, logger observability.Logger) {
	completed, err := repo.CompletePastBookings(ctx, time.Now())
	if err != nil {
		logger.Error("failed to complete past bookings", err)
	} else if completed > 0 {
		logger.WithField("count", completed).Info("completed past bookings")
	}

	orphans, err := repo.FindOrphanedPayments(ctx, time.Now().Add(-grace))
	if err != nil {
		logger.Error("failed to find orphaned payments", err)
		return
	}
	for _, p := range orphans {
		if err := repo.MarkPaymentRefunded(ctx, p.ID); err != nil {
			logger.WithField("payment_id", p.ID.String()).Error("failed to refund orphaned payment", err)
			continue
		}
		observability.PaymentsReconciled.Inc()
		logger.WithField("payment_id", p.ID.String()).Warn("refunded orphaned payment")
	}
}
