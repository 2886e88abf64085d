package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	owner   = user.Principal{ID: "owner-1", DisplayName: "Olive"}
	bidder  = user.Principal{ID: "bidder-1", DisplayName: "Ben", PhotoURL: "https://example.com/ben.png"}
	other   = user.Principal{ID: "bidder-2", DisplayName: "Bea"}
)

type sentNotice struct {
	userID  string
	message string
	taskID  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, userID, message, taskID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, message: message, taskID: taskID})
	return n.err
}

func (n *fakeNotifier) For(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.message)
		}
	}
	return out
}

type fakePayments struct {
	calls atomic.Int32
	last  domain.PaymentInstruction
	err   error
}

func (p *fakePayments) Release(_ context.Context, instr domain.PaymentInstruction) error {
	p.calls.Add(1)
	p.last = instr
	return p.err
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (p *fakePublisher) PublishChange(c Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *fakePublisher) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Action)
	}
	return out
}

// staleStore reports a lost race for the first n conditional writes.
type staleStore struct {
	Store
	mu    sync.Mutex
	stale int
}

func (s *staleStore) Update(ctx context.Context, t *domain.Task, expectedVersion int64) error {
	s.mu.Lock()
	if s.stale > 0 {
		s.stale--
		s.mu.Unlock()
		return ErrStaleVersion
	}
	s.mu.Unlock()
	return s.Store.Update(ctx, t, expectedVersion)
}

// brokenStore fails every write.
type brokenStore struct {
	Store
}

func (s *brokenStore) Update(context.Context, *domain.Task, int64) error {
	return errors.New("connection reset")
}

type harness struct {
	manager   *Manager
	store     Store
	notifier  *fakeNotifier
	payments  *fakePayments
	publisher *fakePublisher
}

func newHarness(t *testing.T, store Store, retry RetryConfig) *harness {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	h := &harness{
		store:     store,
		notifier:  &fakeNotifier{},
		payments:  &fakePayments{},
		publisher: &fakePublisher{},
	}
	var seq atomic.Int64
	h.manager = NewManager(ManagerConfig{
		Store:      store,
		Notifier:   h.notifier,
		Payments:   h.payments,
		Publisher:  h.publisher,
		Retry:      retry,
		Categories: domain.DefaultCategories,
		Currency:   "USD",
		NewBidID:   func() string { return fmt.Sprintf("bid-%d", seq.Add(1)) },
		Now:        func() time.Time { return testNow },
	})
	h.manager.sleep = func(time.Duration) {}
	return h
}

func testContent() domain.Content {
	return domain.Content{
		Title:        "Build a landing page",
		Category:     "Web Development",
		Description:  "Single page with a signup form",
		Price:        200,
		Deadline:     testNow.Add(7 * 24 * time.Hour),
		Requirements: []string{"HTML", " CSS ", ""},
	}
}

func (h *harness) postTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := h.manager.Create(context.Background(), owner, testContent())
	require.NoError(t, err)
	return task
}

func TestManager_Create(t *testing.T) {
	h := newHarness(t, nil, RetryConfig{})

	task := h.postTask(t)
	assert.Equal(t, domain.StatusOpen, task.Status)
	assert.Equal(t, owner.ID, task.OwnerID)
	assert.Equal(t, "Olive", task.OwnerName)
	assert.Equal(t, []string{"HTML", "CSS"}, task.Requirements)
	assert.Equal(t, int64(1), task.Version)
	assert.Empty(t, task.Bids)
	assert.Equal(t, []string{"created"}, h.publisher.Actions())

	tests := []struct {
		name    string
		p       user.Principal
		mutate  func(*domain.Content)
		wantErr error
	}{
		{"anonymous", user.Principal{}, nil, domain.ErrPermissionDenied},
		{"missing title", owner, func(c *domain.Content) { c.Title = "  " }, domain.ErrValidation},
		{"unknown category", owner, func(c *domain.Content) { c.Category = "Plumbing" }, domain.ErrValidation},
		{"zero price", owner, func(c *domain.Content) { c.Price = 0 }, domain.ErrValidation},
		{"past deadline", owner, func(c *domain.Content) { c.Deadline = testNow.Add(-48 * time.Hour) }, domain.ErrValidation},
		{"no requirements", owner, func(c *domain.Content) { c.Requirements = []string{" "} }, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContent()
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			_, err := h.manager.Create(context.Background(), tt.p, c)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestManager_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	task, err := h.manager.SubmitBid(ctx, bidder, task.ID, 180, "  I can start today ")
	require.NoError(t, err)
	require.Len(t, task.Bids, 1)
	bid := task.Bids[0]
	assert.Equal(t, "bid-1", bid.ID)
	assert.Equal(t, "Ben", bid.BidderName)
	assert.Equal(t, "I can start today", bid.Message)
	assert.Equal(t, 1, task.BidsCount)

	task, err = h.manager.SelectBid(ctx, owner, task.ID, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, task.Status)
	assert.Equal(t, bidder.ID, task.AssignedTo)
	require.NotNil(t, task.WinningBid)
	assert.Equal(t, 180.0, task.WinningBid.Amount)
	assert.Equal(t, []string{domain.MsgBidSelected}, h.notifier.For(bidder.ID))

	task, err = h.manager.CompleteTask(ctx, bidder, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	assert.Equal(t, []string{domain.MsgTaskCompleted}, h.notifier.For(owner.ID))

	task, err = h.manager.ReleasePayment(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, task.Status)
	assert.Equal(t, domain.PaymentCompleted, task.PaymentStatus)
	assert.Equal(t, int32(1), h.payments.calls.Load())
	assert.Equal(t, domain.PaymentInstruction{
		TaskID:      task.ID,
		Amount:      180,
		RecipientID: bidder.ID,
		Currency:    "USD",
	}, h.payments.last)

	assert.Len(t, h.notifier.For(owner.ID), 2)
	assert.Len(t, h.notifier.For(bidder.ID), 2)
	assert.Contains(t, h.notifier.For(bidder.ID)[1], "180.00 USD")

	assert.Equal(t, []string{"created", "bid_submitted", "bid_selected", "completed", "payment_released"}, h.publisher.Actions())
	assert.Equal(t, int64(5), task.Version)

	_, err = h.manager.ReleasePayment(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, int32(1), h.payments.calls.Load())
}

func TestManager_BidRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	_, err := h.manager.SubmitBid(ctx, owner, task.ID, 100, "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.SubmitBid(ctx, user.Principal{}, task.ID, 100, "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.SubmitBid(ctx, bidder, task.ID, -5, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	task, err = h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	bidID := task.Bids[0].ID

	_, err = h.manager.SubmitBid(ctx, bidder, task.ID, 140, "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.EditBid(ctx, other, task.ID, bidID, 120)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	task, err = h.manager.EditBid(ctx, bidder, task.ID, bidID, 120)
	require.NoError(t, err)
	assert.Equal(t, 120.0, task.Bids[0].Amount)

	_, err = h.manager.EditBid(ctx, bidder, task.ID, "missing", 120)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.manager.SelectBid(ctx, bidder, task.ID, bidID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.DeleteBid(ctx, other, task.ID, bidID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	task, err = h.manager.DeleteBid(ctx, bidder, task.ID, bidID)
	require.NoError(t, err)
	assert.Empty(t, task.Bids)
	assert.Equal(t, 0, task.BidsCount)

	_, err = h.manager.SubmitBid(ctx, bidder, "no-such-task", 100, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_BidsClosedAfterAssignment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	task, err := h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	_, err = h.manager.SelectBid(ctx, owner, task.ID, task.Bids[0].ID)
	require.NoError(t, err)

	_, err = h.manager.SubmitBid(ctx, other, task.ID, 90, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.manager.EditBid(ctx, bidder, task.ID, task.Bids[0].ID, 90)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = h.manager.DeleteTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestManager_CompleteAndReleaseGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	_, err := h.manager.CompleteTask(ctx, bidder, task.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "open task has no assignee")

	task, err = h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	task, err = h.manager.SelectBid(ctx, owner, task.ID, task.Bids[0].ID)
	require.NoError(t, err)

	_, err = h.manager.CompleteTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.ReleasePayment(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.manager.CompleteTask(ctx, bidder, task.ID)
	require.NoError(t, err)

	_, err = h.manager.ReleasePayment(ctx, bidder, task.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = h.manager.CompleteTask(ctx, bidder, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, int32(0), h.payments.calls.Load())
}

func TestManager_PaymentFailureKeepsTaskCompleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	task, err := h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	task, err = h.manager.SelectBid(ctx, owner, task.ID, task.Bids[0].ID)
	require.NoError(t, err)
	task, err = h.manager.CompleteTask(ctx, bidder, task.ID)
	require.NoError(t, err)

	h.payments.err = errors.New("gateway timeout")
	_, err = h.manager.ReleasePayment(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)

	stored, err := h.manager.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Empty(t, stored.PaymentStatus)
	assert.Equal(t, task.Version, stored.Version)

	h.payments.err = nil
	closed, err := h.manager.ReleasePayment(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, int32(2), h.payments.calls.Load())
}

func TestManager_EditTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	price := 250.0
	title := "  Build two landing pages "
	edited, err := h.manager.EditTask(ctx, owner, task.ID, domain.Patch{Title: &title, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Build two landing pages", edited.Title)
	assert.Equal(t, 250.0, edited.Price)
	assert.Equal(t, task.Description, edited.Description)

	_, err = h.manager.EditTask(ctx, bidder, task.ID, domain.Patch{Price: &price})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	category := "Plumbing"
	_, err = h.manager.EditTask(ctx, owner, task.ID, domain.Patch{Category: &category})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.manager.EditTask(ctx, owner, task.ID, domain.Patch{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestManager_DeleteTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	task := h.postTask(t)

	err := h.manager.DeleteTask(ctx, bidder, task.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, h.manager.DeleteTask(ctx, owner, task.ID))

	_, err = h.manager.Get(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{"created", "deleted"}, h.publisher.Actions())
	h.publisher.mu.Lock()
	last := h.publisher.changes[len(h.publisher.changes)-1]
	h.publisher.mu.Unlock()
	assert.Nil(t, last.After)
	require.NotNil(t, last.Before)
	assert.Equal(t, task.ID, last.Before.ID)

	changed, ok := ChangedEvent(last)
	require.True(t, ok)
	assert.True(t, changed.Deleted)
	assert.Equal(t, task.Version+1, changed.Task.Version)
	assert.Equal(t, owner.ID, changed.ActorID)
}

func TestChangedEvent(t *testing.T) {
	after := &domain.Task{ID: "task-1", Version: 4}
	changed, ok := ChangedEvent(Change{Action: "bid_submitted", Actor: bidder, After: after, At: testNow})
	require.True(t, ok)
	assert.False(t, changed.Deleted)
	assert.Equal(t, int64(4), changed.Task.Version)
	assert.Equal(t, bidder.ID, changed.ActorID)
	assert.Equal(t, testNow, changed.ChangedAt)

	changed.Task.Version = 99
	assert.Equal(t, int64(4), after.Version, "event must not alias the committed task")

	_, ok = ChangedEvent(Change{Action: "deleted"})
	assert.False(t, ok)
}

func TestManager_RetriesStaleWrites(t *testing.T) {
	ctx := context.Background()
	store := &staleStore{Store: NewMemoryStore()}
	h := newHarness(t, store, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	task := h.postTask(t)

	var delays []time.Duration
	h.manager.sleep = func(d time.Duration) { delays = append(delays, d) }

	store.stale = 2
	updated, err := h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	assert.Len(t, updated.Bids, 1)
	assert.Equal(t, task.Version+1, updated.Version)
	assert.Len(t, delays, 2)

	store.stale = 10
	_, err = h.manager.SubmitBid(ctx, other, task.ID, 140, "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := h.manager.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Bids, 1)
}

func TestManager_StoreFailure(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	h := newHarness(t, &brokenStore{Store: mem}, RetryConfig{})
	task := h.postTask(t)

	_, err := h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, []string{"created"}, h.publisher.Actions())
}

func TestManager_ConcurrentBidsAreNotLost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{MaxAttempts: 50, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	task := h.postTask(t)

	const bidders = 10
	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := range bidders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := user.Principal{ID: fmt.Sprintf("bidder-%02d", i), DisplayName: "Bidder"}
			_, errs[i] = h.manager.SubmitBid(ctx, p, task.ID, float64(100+i), "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stored, err := h.manager.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Bids, bidders)
	assert.Equal(t, bidders, stored.BidsCount)
	assert.Equal(t, int64(1+bidders), stored.Version)
}

func TestManager_Dashboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})

	open := h.postTask(t)
	assigned := h.postTask(t)
	done := h.postTask(t)

	for _, task := range []*domain.Task{assigned, done} {
		task, err := h.manager.SubmitBid(ctx, bidder, task.ID, 100, "")
		require.NoError(t, err)
		_, err = h.manager.SelectBid(ctx, owner, task.ID, task.Bids[0].ID)
		require.NoError(t, err)
	}
	_, err := h.manager.CompleteTask(ctx, bidder, done.ID)
	require.NoError(t, err)

	ownerView, err := h.manager.Dashboard(ctx, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{open.ID, assigned.ID}, ids(ownerView.Posted))
	assert.Equal(t, []string{done.ID}, ids(ownerView.Completed))
	assert.Empty(t, ownerView.Assigned)

	bidderView, err := h.manager.Dashboard(ctx, bidder)
	require.NoError(t, err)
	assert.Empty(t, bidderView.Posted)
	assert.Equal(t, []string{assigned.ID}, ids(bidderView.Assigned))
	assert.Equal(t, []string{done.ID}, ids(bidderView.Finished))

	_, err = h.manager.Dashboard(ctx, user.Principal{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestManager_NotificationFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, RetryConfig{})
	h.notifier.err = errors.New("notification store down")
	task := h.postTask(t)

	task, err := h.manager.SubmitBid(ctx, bidder, task.ID, 150, "")
	require.NoError(t, err)
	selected, err := h.manager.SelectBid(ctx, owner, task.ID, task.Bids[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, selected.Status)
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 20*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 40*time.Millisecond, cfg.delay(3))
	assert.Equal(t, 50*time.Millisecond, cfg.delay(4))
}

func ids(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
