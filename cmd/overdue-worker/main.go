package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/practitioner-scheduling/internal/app"
	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/config"
	"github.com/hackgods/practitioner-scheduling/internal/logger"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

const absenceReason = "automatically marked absent"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("overdue-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(rootCtx, cfg, zl)
	if err != nil {
		zl.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close()

	runOnce(rootCtx, rt.Core, zl)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zl.Info("shutdown signal received, stopping overdue worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, rt.Core, zl)
		}
	}
}

// runOnce marks PENDING appointments whose end has passed as ABSENT.
// Appointments still in progress are left for the front desk, and ones a
// clerk resolved in the meantime are skipped.
func runOnce(ctx context.Context, core *scheduling.Core, zl *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	overdue, err := core.OverdueToMark(runCtx)
	if err != nil {
		zl.Error("list overdue appointments", zap.Error(err))
		return
	}
	due := dueForAbsence(overdue, time.Now())

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(4)
	for _, a := range due {
		g.Go(func() error {
			_, err := core.MarkAbsent(gctx, a.ID, absenceReason, uuid.Nil)
			switch {
			case err == nil:
			case apperror.Is(err, apperror.KindValidation), apperror.Is(err, apperror.KindNotFound):
				zl.Debug("appointment already resolved", zap.String("appointment_id", a.ID.String()))
			default:
				zl.Warn("mark absent failed", zap.String("appointment_id", a.ID.String()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	zl.Info("overdue run complete",
		zap.Int("overdue", len(overdue)),
		zap.Int("marked", len(due)),
		zap.Duration("took", time.Since(start)),
	)
}

// dueForAbsence keeps the overdue appointments that have also ended by now.
func dueForAbsence(overdue []appointment.Appointment, now time.Time) []appointment.Appointment {
	var due []appointment.Appointment
	for _, a := range overdue {
		if !a.End().After(now) {
			due = append(due, a)
		}
	}
	return due
}
