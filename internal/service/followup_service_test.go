package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

type stubFollowUpStore struct {
	incidents []models.Incident
	err       error
}

func (s stubFollowUpStore) ListFollowUps(ctx context.Context) ([]models.Incident, error) {
	return s.incidents, s.err
}

type recordingFollowUpNotifier struct {
	due  []string
	days []temporal.Date
	fail map[string]bool
}

func (r *recordingFollowUpNotifier) FollowUpDue(record models.Incident, dueOn temporal.Date) error {
	if r.fail[record.ID] {
		return errors.New("queue full")
	}
	r.due = append(r.due, record.ID)
	r.days = append(r.days, dueOn)
	return nil
}

func followUpIncident(id string, frequency models.FollowUpFrequency, day int, status models.IncidentStatus) models.Incident {
	record := storedIncident(status, models.SeverityModerate)
	record.ID = id
	record.IncidentDate = temporal.Date{Year: 2024, Month: time.March, Day: day}
	record.FollowUpRequired = true
	record.FollowUpFrequency = &frequency
	return record
}

func TestFollowUpDueOn(t *testing.T) {
	weekly := followUpIncident("w", models.FollowUpWeekly, 4, models.IncidentStatusOpen)
	day := func(d int) temporal.Date { return temporal.Date{Year: 2024, Month: time.March, Day: d} }

	assert.False(t, FollowUpDueOn(weekly, day(4)), "same day")
	assert.False(t, FollowUpDueOn(weekly, day(10)))
	assert.True(t, FollowUpDueOn(weekly, day(11)))
	assert.True(t, FollowUpDueOn(weekly, day(18)))

	daily := followUpIncident("d", models.FollowUpDaily, 4, models.IncidentStatusResolved)
	assert.True(t, FollowUpDueOn(daily, day(5)))

	closed := followUpIncident("c", models.FollowUpDaily, 4, models.IncidentStatusClosed)
	assert.False(t, FollowUpDueOn(closed, day(5)))

	notRequired := followUpIncident("n", models.FollowUpDaily, 4, models.IncidentStatusOpen)
	notRequired.FollowUpRequired = false
	assert.False(t, FollowUpDueOn(notRequired, day(5)))
}

func TestFollowUpSchedulerRunOnce(t *testing.T) {
	store := stubFollowUpStore{incidents: []models.Incident{
		followUpIncident("weekly-due", models.FollowUpWeekly, 4, models.IncidentStatusOpen),
		followUpIncident("biweekly-early", models.FollowUpBiweekly, 4, models.IncidentStatusOpen),
		followUpIncident("daily-failing", models.FollowUpDaily, 10, models.IncidentStatusOpen),
	}}
	notifier := &recordingFollowUpNotifier{fail: map[string]bool{"daily-failing": true}}
	metrics := NewMetricsService()
	scheduler := NewFollowUpScheduler(store, notifier, metrics, santiago, zap.NewNop())

	// 01:30 UTC on the 12th is still the 11th in the school's zone.
	due, err := scheduler.RunOnce(context.Background(), time.Date(2024, 3, 12, 1, 30, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily-failing")
	assert.Equal(t, 1, due)
	assert.Equal(t, []string{"weekly-due"}, notifier.due)
	assert.Equal(t, temporal.Date{Year: 2024, Month: time.March, Day: 11}, notifier.days[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.followUpsDue))
}

func TestFollowUpSchedulerStartStop(t *testing.T) {
	scheduler := NewFollowUpScheduler(stubFollowUpStore{}, &recordingFollowUpNotifier{}, nil, nil, nil)

	require.Error(t, scheduler.Start(context.Background(), "not a schedule"))
	require.NoError(t, scheduler.Start(context.Background(), "0 7 * * 1-5"))
	scheduler.Stop()
}

func TestFollowUpSchedulerListFailure(t *testing.T) {
	scheduler := NewFollowUpScheduler(stubFollowUpStore{err: errors.New("db down")}, &recordingFollowUpNotifier{}, nil, nil, nil)
	_, err := scheduler.RunOnce(context.Background(), time.Now())
	require.Error(t, err)
}
