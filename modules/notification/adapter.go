package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/notification"
	"github.com/khalidAdell/quick-task/domain/task"
)

// NotifierPort is the write side used by the task lifecycle.
type NotifierPort interface {
	Notify(ctx context.Context, userID, message, taskID string) error
}

// NotificationPort is the read side used by the API.
type NotificationPort interface {
	List(ctx context.Context, req ListNotificationsRequest) (ListNotificationsResponse, error)
	MarkRead(ctx context.Context, userID, notificationID string) (domain.Notification, error)
}

// NotificationAdapter implements both ports over the service container.
type NotificationAdapter struct {
	container mono.ServiceContainer
}

var (
	_ NotifierPort     = (*NotificationAdapter)(nil)
	_ NotificationPort = (*NotificationAdapter)(nil)
)

func NewNotificationAdapter(container mono.ServiceContainer) *NotificationAdapter {
	return &NotificationAdapter{container: container}
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx, container, service, json.Marshal, json.Unmarshal, req, resp,
	); err != nil {
		return task.FromRemote(fmt.Errorf("%s request failed: %w", service, err))
	}
	return nil
}

func (a *NotificationAdapter) Notify(ctx context.Context, userID, message, taskID string) error {
	req := CreateNotificationRequest{UserID: userID, TaskID: taskID, Message: message}
	var resp domain.Notification
	return call(ctx, a.container, "create-notification", &req, &resp)
}

func (a *NotificationAdapter) List(ctx context.Context, req ListNotificationsRequest) (ListNotificationsResponse, error) {
	var resp ListNotificationsResponse
	err := call(ctx, a.container, "list-notifications", &req, &resp)
	return resp, err
}

func (a *NotificationAdapter) MarkRead(ctx context.Context, userID, notificationID string) (domain.Notification, error) {
	req := MarkReadRequest{UserID: userID, NotificationID: notificationID}
	var resp domain.Notification
	err := call(ctx, a.container, "mark-notification-read", &req, &resp)
	return resp, err
}
