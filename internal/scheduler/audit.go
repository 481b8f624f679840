// Package scheduler runs periodic background checks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/observ"
	"go.uber.org/zap"
)

// AdminFinder resolves the single admin.
type AdminFinder interface {
	GetAdmin(ctx context.Context) (*models.UserProfile, error)
}

// AuditResult is the outcome of one admin check.
type AuditResult int

const (
	AuditOK AuditResult = iota
	AuditNoAdmin
	AuditMultipleAdmins
	AuditFailed
)

func (r AuditResult) String() string {
	switch r {
	case AuditOK:
		return "ok"
	case AuditNoAdmin:
		return "no_admin"
	case AuditMultipleAdmins:
		return "multiple_admins"
	case AuditFailed:
		return "failed"
	}
	return fmt.Sprintf("audit_result(%d)", int(r))
}

// AuditAdmin checks that exactly one admin exists. Violations are logged;
// nothing is repaired.
func AuditAdmin(ctx context.Context, admins AdminFinder, logger *zap.Logger) AuditResult {
	admin, err := admins.GetAdmin(ctx)
	switch {
	case err == nil:
		logger.Debug("admin audit passed", zap.String("admin", admin.SlackID))
		return AuditOK
	case errors.Is(err, errs.ErrNoAdmin):
		logger.Error("admin audit: no admin configured; assignment and preference changes are blocked")
		return AuditNoAdmin
	case errors.Is(err, errs.ErrMultipleAdmins):
		logger.Error("admin audit: more than one admin configured", zap.Error(err))
		return AuditMultipleAdmins
	}
	logger.Warn("admin audit could not run", zap.Error(err))
	return AuditFailed
}

// Scheduler owns the gocron scheduler.
type Scheduler struct {
	s      gocron.Scheduler
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(observ.GocronLogger(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{s: s, logger: logger}, nil
}

// ScheduleAdminAudit runs AuditAdmin every interval, starting immediately.
func (s *Scheduler) ScheduleAdminAudit(interval time.Duration, admins AdminFinder) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			AuditAdmin(ctx, admins, s.logger)
		}),
		gocron.WithName("admin-audit"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule admin audit: %w", err)
	}
	s.logger.Info("job scheduled", zap.String("name", "admin-audit"), zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) Start() {
	s.s.Start()
}

func (s *Scheduler) Shutdown() error {
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
