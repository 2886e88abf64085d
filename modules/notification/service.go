package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/khalidAdell/quick-task/domain/notification"
	"github.com/khalidAdell/quick-task/domain/task"
)

// defaultListLimit bounds a single listing.
const defaultListLimit = 100

// NotificationService is the notification emitter.
type NotificationService struct {
	repo      *NotificationRepository
	onCreated func(domain.Notification)
	now       func() time.Time
}

// NewNotificationService creates a NotificationService. onCreated runs after
// every stored notification and may be nil.
func NewNotificationService(repo *NotificationRepository, onCreated func(domain.Notification)) *NotificationService {
	return &NotificationService{
		repo:      repo,
		onCreated: onCreated,
		now:       time.Now,
	}
}

// Notify appends an unread notification for userID. taskID may be empty.
func (s *NotificationService) Notify(ctx context.Context, userID, message, taskID string) (*domain.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: recipient is required", task.ErrValidation)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", task.ErrValidation)
	}

	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		TaskID:    taskID,
		Message:   message,
		Read:      false,
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: failed to store notification: %v", task.ErrStoreUnavailable, err)
	}

	if s.onCreated != nil {
		s.onCreated(*n)
	}
	return n, nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int64, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: sign in to read notifications", task.ErrPermissionDenied)
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	items, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list notifications: %v", task.ErrStoreUnavailable, err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count notifications: %v", task.ErrStoreUnavailable, err)
	}
	return items, unread, nil
}

// MarkRead marks a notification read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: sign in to read notifications", task.ErrPermissionDenied)
	}

	n, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return nil, fmt.Errorf("%w: notification %s does not exist", task.ErrNotFound, notificationID)
		}
		return nil, fmt.Errorf("%w: failed to load notification: %v", task.ErrStoreUnavailable, err)
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("%w: only the recipient can mark a notification read", task.ErrPermissionDenied)
	}
	if n.Read {
		return n, nil
	}

	if err := s.repo.MarkRead(ctx, n.ID); err != nil {
		return nil, fmt.Errorf("%w: failed to update notification: %v", task.ErrStoreUnavailable, err)
	}
	n.Read = true
	return n, nil
}
