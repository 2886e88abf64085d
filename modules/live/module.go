package live

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/events"
	"github.com/khalidAdell/quick-task/modules/task"
)

// LiveModule turns TaskChanged and NotificationCreated events into
// websocket pushes. Task snapshots go through a task.Watcher so each
// socket gets coalesced, version-ordered delivery; notifications go
// through the Hub to every connection of the recipient.
type LiveModule struct {
	hub       *Hub
	watcher   *task.Watcher
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*LiveModule)(nil)
var _ mono.EventConsumerModule = (*LiveModule)(nil)
var _ mono.HealthCheckableModule = (*LiveModule)(nil)

// NewModule creates a new LiveModule.
func NewModule() *LiveModule {
	return &LiveModule{
		hub:     NewHub(),
		watcher: task.NewWatcher(),
	}
}

func (m *LiveModule) Name() string {
	return "live"
}

func (m *LiveModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[live] Module started - websocket hub running")
	return nil
}

func (m *LiveModule) Stop(_ context.Context) error {
	clients := m.hub.ClientCount()
	subs := m.watcher.Count()
	m.watcher.Close()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[live] Module stopped - %d notification clients, %d task subscriptions were open", clients, subs)
	return nil
}

func (m *LiveModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"notification_clients": m.hub.ClientCount(),
			"task_subscriptions":   m.watcher.Count(),
		},
	}
}

func (m *LiveModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskChangedV1, m.handleTaskChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskChanged consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.NotificationCreatedV1, m.handleNotificationCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register NotificationCreated consumer: %w", err)
	}

	log.Println("[live] Registered event consumers: TaskChanged, NotificationCreated")
	return nil
}

func (m *LiveModule) handleTaskChanged(_ context.Context, event events.TaskChangedEvent, _ *mono.Msg) error {
	snapshot := event.Task
	m.watcher.Publish(task.Snapshot{Task: &snapshot, Deleted: event.Deleted})
	return nil
}

func (m *LiveModule) handleNotificationCreated(_ context.Context, event events.NotificationCreatedEvent, _ *mono.Msg) error {
	m.hub.Broadcast(event.UserID, NotificationMessage{
		Type:      "notification",
		ID:        event.ID,
		TaskID:    event.TaskID,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	})
	return nil
}

// Hub returns the notification hub for the API module.
func (m *LiveModule) Hub() *Hub {
	return m.hub
}

// Watcher returns the task snapshot watcher for the API module.
func (m *LiveModule) Watcher() *task.Watcher {
	return m.watcher
}

// NotificationMessage is pushed to notification sockets.
type NotificationMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskMessage is pushed to task sockets.
type TaskMessage struct {
	Type    string       `json:"type"` // snapshot or deleted
	Version int64        `json:"version"`
	Task    *domain.Task `json:"task"`
}

// NewTaskMessage converts a watcher snapshot to its wire form.
func NewTaskMessage(s task.Snapshot) TaskMessage {
	msg := TaskMessage{Type: "snapshot", Version: s.Version(), Task: s.Task}
	if s.Deleted {
		msg.Type = "deleted"
	}
	return msg
}
