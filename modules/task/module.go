package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	nanoid "github.com/jaevor/go-nanoid"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/events"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/payment"
	"github.com/redis/go-redis/v9"
)

// Config selects the task store and tunes the lifecycle manager.
type Config struct {
	Driver      string // sqlite, postgres or memory
	SQLiteDSN   string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	Retry      RetryConfig
	Categories []string
	Currency   string
}

// TaskModule is the task lifecycle core.
type TaskModule struct {
	cfg          Config
	store        Store
	manager      *Manager
	notifierPort notification.NotifierPort
	paymentPort  payment.PaymentPort
	eventBus     mono.EventBus
}

var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.DependentModule = (*TaskModule)(nil)
var _ mono.EventEmitterModule = (*TaskModule)(nil)
var _ mono.HealthCheckableModule = (*TaskModule)(nil)

func NewModule(cfg Config) *TaskModule {
	return &TaskModule{cfg: cfg}
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) Dependencies() []string {
	return []string{"notification", "payment"}
}

func (m *TaskModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "notification":
		m.notifierPort = notification.NewNotificationAdapter(container)
	case "payment":
		m.paymentPort = payment.NewPaymentAdapter(container)
	}
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskChangedV1.ToBase(),
		events.TaskCreatedV1.ToBase(),
		events.BidPlacedV1.ToBase(),
		events.TaskAssignedV1.ToBase(),
		events.TaskCompletedV1.ToBase(),
		events.PaymentReleasedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	services := []struct {
		name     string
		register func(mono.ServiceContainer, string) error
	}{
		{"create-task", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.createTask)
		}},
		{"get-task", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.getTask)
		}},
		{"list-tasks", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.listTasks)
		}},
		{"dashboard", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.dashboard)
		}},
		{"submit-bid", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.submitBid)
		}},
		{"edit-bid", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.editBid)
		}},
		{"delete-bid", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.deleteBid)
		}},
		{"select-bid", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.selectBid)
		}},
		{"edit-task", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.editTask)
		}},
		{"delete-task", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.deleteTask)
		}},
		{"complete-task", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.completeTask)
		}},
		{"release-task-payment", func(c mono.ServiceContainer, n string) error {
			return helper.RegisterTypedRequestReplyService(c, n, json.Unmarshal, json.Marshal, m.releasePayment)
		}},
	}

	for _, svc := range services {
		if err := svc.register(container, svc.name); err != nil {
			return fmt.Errorf("failed to register %s service: %w", svc.name, err)
		}
	}

	log.Printf("[task] Registered %d services", len(services))
	return nil
}

func (m *TaskModule) Start(ctx context.Context) error {
	if m.notifierPort == nil {
		return fmt.Errorf("notifierPort dependency not set")
	}
	if m.paymentPort == nil {
		return fmt.Errorf("paymentPort dependency not set")
	}
	if m.eventBus == nil {
		log.Println("[task] Warning: eventBus not set, events will not be published")
	}

	store, err := OpenStore(ctx, m.cfg)
	if err != nil {
		return err
	}
	m.store = store

	newBidID, err := nanoid.Standard(21)
	if err != nil {
		return fmt.Errorf("failed to create bid id generator: %w", err)
	}

	m.manager = NewManager(ManagerConfig{
		Store:      store,
		Notifier:   m.notifierPort,
		Payments:   m.paymentPort,
		Publisher:  m,
		Retry:      m.cfg.Retry,
		Categories: m.cfg.Categories,
		Currency:   m.cfg.Currency,
		NewBidID:   newBidID,
	})

	log.Printf("[task] Module started (store: %s, depends on: notification, payment)", m.storeName())
	return nil
}

// OpenStore builds the Store selected by cfg, wrapped in the Redis cache when one is configured.
func OpenStore(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		store, err = OpenPostgresStore(ctx, cfg.DatabaseURL)
	case "memory":
		store = NewMemoryStore()
	default:
		store, err = OpenSQLiteStore(cfg.SQLiteDSN)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return store, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[task] Warning: redis at %s unavailable, running without cache: %v", cfg.RedisAddr, err)
		client.Close()
		return store, nil
	}
	return NewCachedStore(store, client, cfg.CacheTTL), nil
}

func (m *TaskModule) storeName() string {
	name := m.cfg.Driver
	if _, ok := m.store.(*CachedStore); ok {
		name += "+redis"
	}
	return name
}

func (m *TaskModule) Stop(_ context.Context) error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			log.Printf("[task] Warning: failed to close store: %v", err)
		}
	}
	log.Println("[task] Module stopped")
	return nil
}

func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("store ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"store": m.storeName(),
		},
	}
}

// PublishChange emits TaskChanged plus the lifecycle event matching the change.
// Publishing is best-effort.
func (m *TaskModule) PublishChange(change Change) {
	if m.eventBus == nil {
		return
	}
	changed, ok := ChangedEvent(change)
	if !ok {
		return
	}
	if err := events.TaskChangedV1.Publish(m.eventBus, changed, nil); err != nil {
		log.Printf("[task] Warning: failed to publish TaskChanged event for task %s: %v", changed.Task.ID, err)
	}

	snapshot := change.After
	if snapshot == nil {
		snapshot = change.Before
	}
	if err := m.publishLifecycle(change, snapshot); err != nil {
		log.Printf("[task] Warning: failed to publish %s event for task %s: %v", change.Action, snapshot.ID, err)
	}
}

// ChangedEvent builds the TaskChanged payload for a committed change. A
// deletion carries the last state with its version bumped so subscribers
// order it after every earlier snapshot.
func ChangedEvent(change Change) (events.TaskChangedEvent, bool) {
	snapshot := change.After
	deleted := snapshot == nil
	if deleted {
		snapshot = change.Before
	}
	if snapshot == nil {
		return events.TaskChangedEvent{}, false
	}

	changed := events.TaskChangedEvent{
		Task:      *snapshot.Clone(),
		Action:    change.Action,
		ActorID:   change.Actor.ID,
		Deleted:   deleted,
		ChangedAt: change.At,
	}
	if deleted {
		changed.Task.Version++
	}
	return changed, true
}

func (m *TaskModule) publishLifecycle(change Change, t *domain.Task) error {
	switch change.Action {
	case "created":
		return events.TaskCreatedV1.Publish(m.eventBus, events.TaskCreatedEvent{
			TaskID:    t.ID,
			OwnerID:   t.OwnerID,
			Title:     t.Title,
			Category:  t.Category,
			Price:     t.Price,
			CreatedAt: t.PostedAt,
		}, nil)
	case "bid_submitted":
		bid, ok := t.BidBy(change.Actor.ID)
		if !ok {
			return nil
		}
		return events.BidPlacedV1.Publish(m.eventBus, events.BidPlacedEvent{
			TaskID:   t.ID,
			BidID:    bid.ID,
			BidderID: bid.BidderID,
			Amount:   bid.Amount,
			PlacedAt: bid.Timestamp,
		}, nil)
	case "bid_selected":
		if t.WinningBid == nil {
			return nil
		}
		return events.TaskAssignedV1.Publish(m.eventBus, events.TaskAssignedEvent{
			TaskID:     t.ID,
			OwnerID:    t.OwnerID,
			AssignedTo: t.AssignedTo,
			BidID:      t.WinningBid.ID,
			Amount:     t.WinningBid.Amount,
			AssignedAt: change.At,
		}, nil)
	case "completed":
		return events.TaskCompletedV1.Publish(m.eventBus, events.TaskCompletedEvent{
			TaskID:      t.ID,
			OwnerID:     t.OwnerID,
			AssignedTo:  t.AssignedTo,
			CompletedAt: change.At,
		}, nil)
	case "payment_released":
		if change.Payment == nil {
			return nil
		}
		return events.PaymentReleasedV1.Publish(m.eventBus, events.PaymentReleasedEvent{
			TaskID:      t.ID,
			OwnerID:     t.OwnerID,
			RecipientID: change.Payment.RecipientID,
			Amount:      change.Payment.Amount,
			Currency:    change.Payment.Currency,
			ReleasedAt:  change.At,
		}, nil)
	case "deleted":
		return events.TaskDeletedV1.Publish(m.eventBus, events.TaskDeletedEvent{
			TaskID:    t.ID,
			OwnerID:   t.OwnerID,
			DeletedAt: change.At,
		}, nil)
	}
	return nil
}
