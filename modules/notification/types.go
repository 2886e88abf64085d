package notification

import (
	domain "github.com/khalidAdell/quick-task/domain/notification"
)

// CreateNotificationRequest asks for one notification to be appended.
type CreateNotificationRequest struct {
	UserID  string `json:"user_id"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
}

// ListNotificationsRequest lists the caller's notifications.
type ListNotificationsRequest struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only"`
	Limit      int    `json:"limit"`
}

// ListNotificationsResponse is a page of notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

// MarkReadRequest marks one notification read on behalf of UserID.
type MarkReadRequest struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id"`
}
