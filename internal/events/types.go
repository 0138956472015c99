// Package events publishes site configuration and job lifecycle events to Redis Streams.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	SiteCreated EventType = "SITE_CREATED"
	SiteUpdated EventType = "SITE_UPDATED"
	SiteDeleted EventType = "SITE_DELETED"

	JobCreated   EventType = "JOB_CREATED"
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"
	JobCancelled EventType = "JOB_CANCELLED"
	JobDeleted   EventType = "JOB_DELETED"
)

// Event is the envelope for all lifecycle events.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  EventType `json:"event_type"`
	ResourceID string    `json:"resource_id"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// SitePayload is carried by SITE_CREATED and SITE_DELETED.
type SitePayload struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsActive bool   `json:"is_active"`
}

// SiteUpdatedPayload lists the fields a patch changed.
type SiteUpdatedPayload struct {
	ChangedFields []string `json:"changed_fields"`
}

// JobPayload is carried by all job events.
type JobPayload struct {
	SiteConfigurationID string `json:"site_configuration_id"`
	Status              string `json:"status"`
	ErrorMessage        string `json:"error_message,omitempty"`
}
