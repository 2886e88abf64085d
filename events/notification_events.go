package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// NotificationCreatedEvent is emitted after a notification record is stored.
type NotificationCreatedEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationCreatedV1 is the typed event definition for new notifications.
// Subject: events.notification.v1.notification-created
var NotificationCreatedV1 = helper.EventDefinition[NotificationCreatedEvent](
	"notification", "NotificationCreated", "v1",
)
