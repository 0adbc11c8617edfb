package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/jobs"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

const (
	// JobGraveIncident notifies guardians and staff about a GRAVE incident.
	JobGraveIncident = "incident.grave"
	// JobFollowUpDue reminds staff that an incident follow-up is due.
	JobFollowUpDue = "incident.followup"
)

// Notification is the payload handed to a Notifier.
type Notification struct {
	Kind          string               `json:"kind"`
	IncidentID    string               `json:"incidentId"`
	StudentID     string               `json:"studentId"`
	StudentName   string               `json:"studentName,omitempty"`
	IncidentType  models.IncidentType  `json:"incidentType"`
	SeverityLevel models.SeverityLevel `json:"severityLevel"`
	IncidentDate  temporal.Date        `json:"incidentDate"`
	DueOn         *temporal.Date       `json:"dueOn,omitempty"`
	ReportedBy    string               `json:"reportedBy"`
}

// Notifier delivers notifications to their audience.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the default
// delivery channel until a messaging provider is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	fields := []zap.Field{
		zap.String("kind", msg.Kind),
		zap.String("incident_id", msg.IncidentID),
		zap.String("student_id", msg.StudentID),
		zap.String("severity", string(msg.SeverityLevel)),
		zap.String("incident_date", msg.IncidentDate.String()),
	}
	if msg.DueOn != nil {
		fields = append(fields, zap.String("due_on", msg.DueOn.String()))
	}
	n.logger.Info("incident notification", fields...)
	return nil
}

type jobQueue interface {
	Handle(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// NotificationService turns incident events into queued notification jobs.
type NotificationService struct {
	queue    jobQueue
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationService registers the notification job handlers on queue.
func NewNotificationService(queue jobQueue, notifier Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	s := &NotificationService{queue: queue, notifier: notifier, logger: logger}
	if queue != nil {
		queue.Handle(JobGraveIncident, s.deliver)
		queue.Handle(JobFollowUpDue, s.deliver)
	}
	return s
}

// GraveIncident queues the notification raised when a GRAVE incident is recorded.
func (s *NotificationService) GraveIncident(incident models.Incident) error {
	return s.enqueue(JobGraveIncident, notificationFor(JobGraveIncident, incident))
}

// FollowUpDue queues a follow-up reminder for incident due on the given day.
func (s *NotificationService) FollowUpDue(incident models.Incident, dueOn temporal.Date) error {
	msg := notificationFor(JobFollowUpDue, incident)
	msg.DueOn = &dueOn
	return s.enqueue(JobFollowUpDue, msg)
}

func (s *NotificationService) enqueue(jobType string, msg Notification) error {
	if s == nil || s.queue == nil {
		return nil
	}
	if err := s.queue.Enqueue(jobs.Job{Type: jobType, Payload: msg}); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Notification)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	return s.notifier.Notify(ctx, msg)
}

func notificationFor(kind string, incident models.Incident) Notification {
	msg := Notification{
		Kind:          kind,
		IncidentID:    incident.ID,
		StudentID:     incident.StudentID,
		IncidentType:  incident.IncidentType,
		SeverityLevel: incident.SeverityLevel,
		IncidentDate:  incident.IncidentDate,
		ReportedBy:    incident.ReportedBy,
	}
	if incident.StudentName != nil {
		msg.StudentName = *incident.StudentName
	}
	return msg
}
