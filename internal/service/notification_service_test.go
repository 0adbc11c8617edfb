package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/jobs"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

type recordingNotifier struct {
	mu       sync.Mutex
	received []Notification
	failures int
	done     chan struct{}
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("gateway unavailable")
	}
	r.received = append(r.received, n)
	if r.done != nil {
		r.done <- struct{}{}
	}
	return nil
}

func TestNotificationServiceDeliversThroughQueue(t *testing.T) {
	metrics := NewMetricsService()
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Observer:   metrics.ObserveNotificationJob,
	})
	notifier := &recordingNotifier{failures: 1, done: make(chan struct{}, 2)}
	svc := NewNotificationService(queue, notifier, zap.NewNop())
	queue.Start(context.Background())
	defer queue.Stop()

	name := "Ana Pérez"
	record := storedIncident(models.IncidentStatusOpen, models.SeveritySevere)
	record.StudentName = &name
	require.NoError(t, svc.GraveIncident(record))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.received, 1)
	got := notifier.received[0]
	assert.Equal(t, JobGraveIncident, got.Kind)
	assert.Equal(t, "inc-1", got.IncidentID)
	assert.Equal(t, "Ana Pérez", got.StudentName)
	assert.Nil(t, got.DueOn)
}

func TestNotificationServiceFollowUpCarriesDueDate(t *testing.T) {
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{Workers: 1})
	notifier := &recordingNotifier{done: make(chan struct{}, 1)}
	svc := NewNotificationService(queue, notifier, nil)
	queue.Start(context.Background())
	defer queue.Stop()

	due := temporal.Date{Year: 2024, Month: time.March, Day: 11}
	require.NoError(t, svc.FollowUpDue(storedIncident(models.IncidentStatusOpen, models.SeverityMild), due))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder not delivered")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotNil(t, notifier.received[0].DueOn)
	assert.Equal(t, due, *notifier.received[0].DueOn)
}

func TestNotificationServiceEnqueueFailsWhenQueueStopped(t *testing.T) {
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{})
	svc := NewNotificationService(queue, &recordingNotifier{}, nil)

	err := svc.GraveIncident(storedIncident(models.IncidentStatusOpen, models.SeveritySevere))
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobGraveIncident)
}

func TestLogNotifierWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))

	require.NoError(t, notifier.Notify(context.Background(), Notification{Kind: JobFollowUpDue, IncidentID: "inc-9"}))
	entries := logs.FilterMessage("incident notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "inc-9", entries[0].ContextMap()["incident_id"])
}
