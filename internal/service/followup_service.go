package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

type followUpStore interface {
	ListFollowUps(ctx context.Context) ([]models.Incident, error)
}

type followUpNotifier interface {
	FollowUpDue(incident models.Incident, dueOn temporal.Date) error
}

// FollowUpScheduler raises reminders for open incidents that asked for follow-up.
type FollowUpScheduler struct {
	store    followUpStore
	notifier followUpNotifier
	metrics  *MetricsService
	loc      *time.Location
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewFollowUpScheduler constructs the scheduler. loc decides which calendar day "today" is.
func NewFollowUpScheduler(store followUpStore, notifier followUpNotifier, metrics *MetricsService, loc *time.Location, logger *zap.Logger) *FollowUpScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cronLog{logger: logger.Sugar()}
	return &FollowUpScheduler{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		loc:      loc,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start schedules RunOnce on spec, a standard five-field cron expression.
func (s *FollowUpScheduler) Start(ctx context.Context, spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx, time.Now()); err != nil {
			s.logger.Warn("follow-up run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule follow-ups %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("follow-up scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *FollowUpScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce queues a reminder for every incident whose follow-up falls due on now's
// calendar day and returns how many were queued.
func (s *FollowUpScheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	incidents, err := s.store.ListFollowUps(ctx)
	if err != nil {
		return 0, fmt.Errorf("list follow-ups: %w", err)
	}

	today := temporal.Today(now, s.loc)
	var (
		due  int
		errs []error
	)
	for _, incident := range incidents {
		if !FollowUpDueOn(incident, today) {
			continue
		}
		if err := s.notifier.FollowUpDue(incident, today); err != nil {
			errs = append(errs, fmt.Errorf("incident %s: %w", incident.ID, err))
			continue
		}
		due++
	}
	s.metrics.SetFollowUpsDue(due)
	s.logger.Info("follow-up reminders queued", zap.Int("due", due), zap.Int("candidates", len(incidents)))
	return due, errors.Join(errs...)
}

// FollowUpDueOn reports whether incident owes a reminder on day: follow-up is required,
// the record is not CLOSED, and a whole number of intervals has elapsed since incidentDate.
func FollowUpDueOn(incident models.Incident, day temporal.Date) bool {
	if !incident.FollowUpRequired || incident.FollowUpFrequency == nil || incident.Status == models.IncidentStatusClosed {
		return false
	}
	interval := incident.FollowUpFrequency.IntervalDays()
	if interval == 0 {
		return false
	}
	elapsed := incident.IncidentDate.DaysUntil(day)
	return elapsed > 0 && elapsed%interval == 0
}

type cronLog struct {
	logger *zap.SugaredLogger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
