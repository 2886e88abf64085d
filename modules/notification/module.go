package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/notification"
	"github.com/khalidAdell/quick-task/events"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NotificationModule stores user notifications and announces new ones on the event bus.
type NotificationModule struct {
	db       *gorm.DB
	dsn      string
	service  *NotificationService
	eventBus mono.EventBus
}

var _ mono.Module = (*NotificationModule)(nil)
var _ mono.ServiceProviderModule = (*NotificationModule)(nil)
var _ mono.EventEmitterModule = (*NotificationModule)(nil)
var _ mono.HealthCheckableModule = (*NotificationModule)(nil)

// NewModule creates a NotificationModule backed by the sqlite database at dsn.
func NewModule(dsn string) *NotificationModule {
	return &NotificationModule{dsn: dsn}
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *NotificationModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.NotificationCreatedV1.ToBase(),
	}
}

func (m *NotificationModule) Start(_ context.Context) error {
	db, err := OpenDB(m.dsn)
	if err != nil {
		return err
	}
	m.db = db
	m.service = NewNotificationService(NewNotificationRepository(db), m.publishCreated)

	if m.eventBus == nil {
		log.Println("[notification] Warning: eventBus not set, events will not be published")
	}
	log.Printf("[notification] Module started (database: %s)", m.dsn)
	return nil
}

// OpenDB opens the notification database and migrates its schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Notification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (m *NotificationModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[notification] Module stopped")
	return nil
}

func (m *NotificationModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

func (m *NotificationModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-notification", json.Unmarshal, json.Marshal, m.createNotification,
	); err != nil {
		return fmt.Errorf("failed to register create-notification service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-notifications", json.Unmarshal, json.Marshal, m.listNotifications,
	); err != nil {
		return fmt.Errorf("failed to register list-notifications service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "mark-notification-read", json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register mark-notification-read service: %w", err)
	}

	log.Printf("[notification] Registered services: create-notification, list-notifications, mark-notification-read")
	return nil
}

func (m *NotificationModule) createNotification(ctx context.Context, req CreateNotificationRequest, _ *mono.Msg) (domain.Notification, error) {
	n, err := m.service.Notify(ctx, req.UserID, req.Message, req.TaskID)
	if err != nil {
		return domain.Notification{}, err
	}
	return *n, nil
}

func (m *NotificationModule) listNotifications(ctx context.Context, req ListNotificationsRequest, _ *mono.Msg) (ListNotificationsResponse, error) {
	items, unread, err := m.service.List(ctx, req.UserID, req.UnreadOnly, req.Limit)
	if err != nil {
		return ListNotificationsResponse{}, err
	}
	return ListNotificationsResponse{Notifications: items, Unread: unread}, nil
}

func (m *NotificationModule) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (domain.Notification, error) {
	n, err := m.service.MarkRead(ctx, req.UserID, req.NotificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return *n, nil
}

func (m *NotificationModule) publishCreated(n domain.Notification) {
	if m.eventBus == nil {
		return
	}
	event := events.NotificationCreatedEvent{
		ID:        n.ID,
		UserID:    n.UserID,
		TaskID:    n.TaskID,
		Message:   n.Message,
		Timestamp: n.Timestamp,
	}
	if err := events.NotificationCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[notification] Warning: failed to publish NotificationCreated event for %s: %v", n.ID, err)
	}
}
