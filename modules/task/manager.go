package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
)

// Notifier appends a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID, message, taskID string) error
}

// PaymentReleaser asks the payment gateway to transfer funds.
type PaymentReleaser interface {
	Release(ctx context.Context, instr domain.PaymentInstruction) error
}

// Change describes a committed write. After is nil when the task was deleted,
// in which case Before holds its last state.
type Change struct {
	Action  string
	Actor   user.Principal
	Before  *domain.Task
	After   *domain.Task
	Payment *domain.PaymentInstruction
	At      time.Time
}

// ChangePublisher announces committed writes to other modules.
type ChangePublisher interface {
	PublishChange(change Change)
}

// RetryConfig bounds the optimistic-concurrency loop.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	}
}

// delay returns the wait before the given retry using exponential backoff.
func (c RetryConfig) delay(retry int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(2, float64(retry-1))
	if time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// ManagerConfig holds the manager's collaborators. Notifier, Payments and
// Publisher may be nil.
type ManagerConfig struct {
	Store      Store
	Notifier   Notifier
	Payments   PaymentReleaser
	Publisher  ChangePublisher
	Retry      RetryConfig
	Categories []string
	Currency   string
	NewBidID   func() string
	Now        func() time.Time
}

// Manager runs lifecycle events against stored tasks. Each write re-reads
// the task, applies the event and commits conditionally on the version it
// read, retrying with backoff when another writer got there first.
type Manager struct {
	store      Store
	notifier   Notifier
	payments   PaymentReleaser
	publisher  ChangePublisher
	retry      RetryConfig
	categories []string
	currency   string
	newBidID   func() string
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.NewBidID == nil {
		cfg.NewBidID = func() string { return uuid.New().String() }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		payments:   cfg.Payments,
		publisher:  cfg.Publisher,
		retry:      cfg.Retry,
		categories: cfg.Categories,
		currency:   cfg.Currency,
		newBidID:   cfg.NewBidID,
		now:        cfg.Now,
		sleep:      time.Sleep,
	}
}

// Create posts a new open task owned by p.
func (m *Manager) Create(ctx context.Context, p user.Principal, c domain.Content) (*domain.Task, error) {
	if p.Anonymous() {
		return nil, fmt.Errorf("%w: you must be signed in to post a task", domain.ErrPermissionDenied)
	}
	now := m.now()
	c, err := domain.ValidateContent(c, now)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCategory(c.Category, m.categories); err != nil {
		return nil, err
	}

	t, err := domain.New(uuid.New().String(), p, c, now)
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(context.WithoutCancel(ctx), t); err != nil {
		return nil, storeError("create task", err)
	}

	m.afterCommit(ctx, Change{Action: "created", Actor: p, After: t, At: now}, nil)
	return t.Clone(), nil
}

// Get returns the current state of a task.
func (m *Manager) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, storeError("load task", err)
	}
	return t, nil
}

// List returns a page of tasks matching q and the total number of matches.
func (m *Manager) List(ctx context.Context, q domain.Query) ([]*domain.Task, int, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, err
	}
	tasks, total, err := m.store.Query(ctx, q)
	if err != nil {
		return nil, 0, storeError("list tasks", err)
	}
	return tasks, total, nil
}

// Dashboard returns the four task lists shown on p's profile.
func (m *Manager) Dashboard(ctx context.Context, p user.Principal) (domain.Dashboard, error) {
	if p.Anonymous() {
		return domain.Dashboard{}, fmt.Errorf("%w: you must be signed in to view your dashboard", domain.ErrPermissionDenied)
	}

	var lists [4][]*domain.Task
	for i, q := range domain.DashboardQueries(p.ID) {
		q.Limit = domain.MaxPageSize
		tasks, _, err := m.List(ctx, q)
		if err != nil {
			return domain.Dashboard{}, err
		}
		lists[i] = tasks
	}
	return domain.Dashboard{
		Posted:    lists[0],
		Completed: lists[1],
		Assigned:  lists[2],
		Finished:  lists[3],
	}, nil
}

// SubmitBid places p's bid on a task.
func (m *Manager) SubmitBid(ctx context.Context, p user.Principal, taskID string, amount float64, message string) (*domain.Task, error) {
	ev := domain.SubmitBid{
		ID:      m.newBidID(),
		Amount:  amount,
		Message: strings.TrimSpace(message),
		At:      m.now(),
	}
	return m.mutate(ctx, p, taskID, "bid_submitted", ev, nil)
}

// EditBid changes the amount of p's bid.
func (m *Manager) EditBid(ctx context.Context, p user.Principal, taskID, bidID string, amount float64) (*domain.Task, error) {
	ev := domain.EditBid{BidID: bidID, Amount: amount, At: m.now()}
	return m.mutate(ctx, p, taskID, "bid_edited", ev, nil)
}

// DeleteBid withdraws p's bid.
func (m *Manager) DeleteBid(ctx context.Context, p user.Principal, taskID, bidID string) (*domain.Task, error) {
	return m.mutate(ctx, p, taskID, "bid_deleted", domain.DeleteBid{BidID: bidID}, nil)
}

// SelectBid assigns the task to the bidder of bidID.
func (m *Manager) SelectBid(ctx context.Context, p user.Principal, taskID, bidID string) (*domain.Task, error) {
	return m.mutate(ctx, p, taskID, "bid_selected", domain.SelectBid{BidID: bidID}, nil)
}

// EditTask changes content fields of a task.
func (m *Manager) EditTask(ctx context.Context, p user.Principal, taskID string, patch domain.Patch) (*domain.Task, error) {
	if patch.Category != nil {
		if err := domain.ValidateCategory(strings.TrimSpace(*patch.Category), m.categories); err != nil {
			return nil, err
		}
	}
	return m.mutate(ctx, p, taskID, "task_edited", domain.EditTask{Patch: patch, At: m.now()}, nil)
}

// DeleteTask removes an open task together with its bids.
func (m *Manager) DeleteTask(ctx context.Context, p user.Principal, taskID string) error {
	_, err := m.mutate(ctx, p, taskID, "deleted", domain.DeleteTask{}, nil)
	return err
}

// CompleteTask marks assigned work as done.
func (m *Manager) CompleteTask(ctx context.Context, p user.Principal, taskID string) (*domain.Task, error) {
	return m.mutate(ctx, p, taskID, "completed", domain.CompleteTask{}, nil)
}

// ReleasePayment pays the winning bidder of a completed task and closes it.
// The gateway is called before the terminal commit; when it fails the task
// stays completed. A commit that fails after a successful payment can be
// retried safely because the payment ledger will not charge twice.
func (m *Manager) ReleasePayment(ctx context.Context, p user.Principal, taskID string) (*domain.Task, error) {
	current, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, storeError("load task", err)
	}
	instr, err := domain.PreparePayment(current, p, m.currency)
	if err != nil {
		return nil, err
	}
	if m.payments == nil {
		return nil, fmt.Errorf("%w: no payment gateway configured", domain.ErrPaymentFailed)
	}

	if err := m.payments.Release(ctx, instr); err != nil {
		if !errors.Is(err, domain.ErrPaymentFailed) && !errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
		}
		log.Printf("[task] Payment release for task %s failed: %v", taskID, err)
		return nil, err
	}

	return m.mutate(ctx, p, taskID, "payment_released", domain.MarkPaid{Currency: m.currency}, &instr)
}

// mutate is the read-apply-conditional-write loop shared by every write.
func (m *Manager) mutate(ctx context.Context, p user.Principal, taskID, action string, ev domain.Event, payment *domain.PaymentInstruction) (*domain.Task, error) {
	readCtx := ctx
	for attempt := 1; ; attempt++ {
		current, err := m.store.Get(readCtx, taskID)
		if err != nil {
			return nil, storeError("load task", err)
		}

		next, notices, err := domain.Apply(current, p, ev)
		if err != nil {
			return nil, err
		}

		// The guard passed: from here on the write runs to completion.
		commitCtx := context.WithoutCancel(ctx)
		if next == nil {
			err = m.store.Delete(commitCtx, taskID, current.Version)
		} else {
			next.Version = current.Version + 1
			err = m.store.Update(commitCtx, next, current.Version)
		}

		switch {
		case err == nil:
			m.afterCommit(commitCtx, Change{
				Action:  action,
				Actor:   p,
				Before:  current,
				After:   next,
				Payment: payment,
				At:      m.now(),
			}, notices)
			if next == nil {
				return nil, nil
			}
			return next.Clone(), nil

		case errors.Is(err, ErrStaleVersion):
			if attempt >= m.retry.MaxAttempts {
				log.Printf("[task] %s on task %s gave up after %d attempts", ev.Name(), taskID, attempt)
				return nil, fmt.Errorf("%w: task %s kept changing, please retry", domain.ErrConflict, taskID)
			}
			m.sleep(m.retry.delay(attempt))
			readCtx = commitCtx

		default:
			return nil, storeError("save task", err)
		}
	}
}

// afterCommit runs the side effects of a committed write. None of them can
// undo the write; failures are logged. Live subscribers are fed from the
// published change, not from here.
func (m *Manager) afterCommit(ctx context.Context, change Change, notices []domain.Notice) {
	ctx = context.WithoutCancel(ctx)

	if m.notifier != nil {
		for _, n := range notices {
			if err := m.notifier.Notify(ctx, n.UserID, n.Message, n.TaskID); err != nil {
				log.Printf("[task] Warning: notification write failed for user %s on task %s: %v", n.UserID, n.TaskID, err)
			}
		}
	}

	if m.publisher != nil {
		m.publisher.PublishChange(change)
	}
}

// storeError passes lifecycle errors through and wraps everything else as ErrStoreUnavailable.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %v", domain.ErrStoreUnavailable, op, err)
}
