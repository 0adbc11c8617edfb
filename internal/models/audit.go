package models

import "time"

// Audit actions written by the incident service.
const (
	AuditActionIncidentCreate     = "INCIDENT_CREATE"
	AuditActionIncidentUpdate     = "INCIDENT_UPDATE"
	AuditActionIncidentTransition = "INCIDENT_TRANSITION"
	AuditActionIncidentExport     = "INCIDENT_EXPORT"
	AuditResourceIncident         = "incident"
)

// AuditLog is one row of the audit trail.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
