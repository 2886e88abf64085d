package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	notifdomain "github.com/khalidAdell/quick-task/domain/notification"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
	"github.com/khalidAdell/quick-task/modules/identity"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskPort implements task.TaskPort for testing
type mockTaskPort struct {
	createFunc    func(ctx context.Context, p user.Principal, c domain.Content) (domain.Task, error)
	getFunc       func(ctx context.Context, taskID string) (domain.Task, error)
	listFunc      func(ctx context.Context, q domain.Query) (task.ListTasksResponse, error)
	dashboardFunc func(ctx context.Context, p user.Principal) (domain.Dashboard, error)
	submitBidFunc func(ctx context.Context, req task.SubmitBidRequest) (domain.Task, error)
	editBidFunc   func(ctx context.Context, req task.EditBidRequest) (domain.Task, error)
	deleteBidFunc func(ctx context.Context, req task.BidActionRequest) (domain.Task, error)
	selectBidFunc func(ctx context.Context, req task.BidActionRequest) (domain.Task, error)
	editTaskFunc  func(ctx context.Context, req task.EditTaskRequest) (domain.Task, error)
	deleteFunc    func(ctx context.Context, req task.TaskActionRequest) error
	completeFunc  func(ctx context.Context, req task.TaskActionRequest) (domain.Task, error)
	releaseFunc   func(ctx context.Context, req task.TaskActionRequest) (domain.Task, error)
}

func (m *mockTaskPort) Create(ctx context.Context, p user.Principal, c domain.Content) (domain.Task, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, p, c)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) Get(ctx context.Context, taskID string) (domain.Task, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, taskID)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) List(ctx context.Context, q domain.Query) (task.ListTasksResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, q)
	}
	return task.ListTasksResponse{}, errNotImplemented
}

func (m *mockTaskPort) Dashboard(ctx context.Context, p user.Principal) (domain.Dashboard, error) {
	if m.dashboardFunc != nil {
		return m.dashboardFunc(ctx, p)
	}
	return domain.Dashboard{}, errNotImplemented
}

func (m *mockTaskPort) SubmitBid(ctx context.Context, req task.SubmitBidRequest) (domain.Task, error) {
	if m.submitBidFunc != nil {
		return m.submitBidFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) EditBid(ctx context.Context, req task.EditBidRequest) (domain.Task, error) {
	if m.editBidFunc != nil {
		return m.editBidFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) DeleteBid(ctx context.Context, req task.BidActionRequest) (domain.Task, error) {
	if m.deleteBidFunc != nil {
		return m.deleteBidFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) SelectBid(ctx context.Context, req task.BidActionRequest) (domain.Task, error) {
	if m.selectBidFunc != nil {
		return m.selectBidFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) EditTask(ctx context.Context, req task.EditTaskRequest) (domain.Task, error) {
	if m.editTaskFunc != nil {
		return m.editTaskFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) DeleteTask(ctx context.Context, req task.TaskActionRequest) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, req)
	}
	return errNotImplemented
}

func (m *mockTaskPort) CompleteTask(ctx context.Context, req task.TaskActionRequest) (domain.Task, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

func (m *mockTaskPort) ReleasePayment(ctx context.Context, req task.TaskActionRequest) (domain.Task, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, req)
	}
	return domain.Task{}, errNotImplemented
}

// mockNotificationPort implements notification.NotificationPort for testing
type mockNotificationPort struct {
	listFunc     func(ctx context.Context, req notification.ListNotificationsRequest) (notification.ListNotificationsResponse, error)
	markReadFunc func(ctx context.Context, userID, id string) (notifdomain.Notification, error)
}

func (m *mockNotificationPort) List(ctx context.Context, req notification.ListNotificationsRequest) (notification.ListNotificationsResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, req)
	}
	return notification.ListNotificationsResponse{}, errNotImplemented
}

func (m *mockNotificationPort) MarkRead(ctx context.Context, userID, id string) (notifdomain.Notification, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, userID, id)
	}
	return notifdomain.Notification{}, errNotImplemented
}

func newTestApp(tasks *mockTaskPort, notifications *mockNotificationPort, bidLimit int) *fiber.App {
	if tasks == nil {
		tasks = &mockTaskPort{}
	}
	if notifications == nil {
		notifications = &mockNotificationPort{}
	}
	m := NewModule(Config{BidRateLimit: bidLimit})
	m.identityPort = tokenIdentity()
	m.taskPort = tasks
	m.notificationPort = notifications
	return m.newApp(nil)
}

func doRequest(t *testing.T, app *fiber.App, method, path, token, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestCreateTask(t *testing.T) {
	var got domain.Content
	var caller user.Principal
	tasks := &mockTaskPort{
		createFunc: func(_ context.Context, p user.Principal, c domain.Content) (domain.Task, error) {
			got, caller = c, p
			return domain.Task{ID: "task-1", OwnerID: p.ID, Title: c.Title, Status: domain.StatusOpen, Version: 1}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	tests := []struct {
		name           string
		token          string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "unauthenticated",
			body:           `{"title":"Logo"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "unauthorized",
		},
		{
			name:           "malformed body",
			token:          "owner-1",
			body:           `{"title":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid request body",
		},
		{
			name:           "bad deadline",
			token:          "owner-1",
			body:           `{"title":"Logo","deadline":"next week"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "deadline must be",
		},
		{
			name:           "created",
			token:          "owner-1",
			body:           `{"title":"Logo","category":"Graphic Design","description":"A logo","price":120,"deadline":"2026-12-01","requirements":["svg"]}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"task-1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, "POST", "/api/v1/tasks", tt.token, tt.body)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Contains(t, body, tt.expectedBody)
		})
	}

	assert.Equal(t, "owner-1", caller.ID)
	assert.Equal(t, "Graphic Design", got.Category)
	assert.Equal(t, 120.0, got.Price)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), got.Deadline)
	assert.Equal(t, []string{"svg"}, got.Requirements)
}

func TestLifecycleErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		token          string
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{"validation", fmt.Errorf("%w: bid amount must be positive", domain.ErrValidation), "u-1", http.StatusBadRequest, "validation_failed", "bid amount must be positive"},
		{"permission", fmt.Errorf("%w: owner cannot bid on own task", domain.ErrPermissionDenied), "u-1", http.StatusForbidden, "permission_denied", "owner cannot bid on own task"},
		{"not found", fmt.Errorf("%w: task t-9", domain.ErrNotFound), "u-1", http.StatusNotFound, "not_found", "task t-9"},
		{"invalid state", fmt.Errorf("%w: task is not open", domain.ErrInvalidState), "u-1", http.StatusConflict, "invalid_state", "task is not open"},
		{"conflict", fmt.Errorf("%w: gave up after 5 attempts", domain.ErrConflict), "u-1", http.StatusConflict, "conflict", "gave up after 5 attempts"},
		{"payment", fmt.Errorf("%w: gateway returned 500", domain.ErrPaymentFailed), "u-1", http.StatusBadGateway, "payment_failed", "gateway returned 500"},
		{"store", fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable), "u-1", http.StatusServiceUnavailable, "store_unavailable", "connection refused"},
		{"remote error", domain.FromRemote(fmt.Errorf("submit-bid request failed: %s", "invalid state: task is not open")), "u-1", http.StatusConflict, "invalid_state", "task is not open"},
		{"unknown", fmt.Errorf("boom"), "u-1", http.StatusInternalServerError, "internal_error", "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &mockTaskPort{
				submitBidFunc: func(context.Context, task.SubmitBidRequest) (domain.Task, error) {
					return domain.Task{}, tt.err
				},
			}
			app := newTestApp(tasks, nil, 0)

			status, body := doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids", tt.token, `{"amount":50}`)
			assert.Equal(t, tt.expectedStatus, status)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, tt.expectedCode, resp.Error)
			assert.Equal(t, tt.expectedMsg, resp.Message)
		})
	}
}

func TestBidRoutesPassPrincipalAndIDs(t *testing.T) {
	var submitted task.SubmitBidRequest
	var edited task.EditBidRequest
	var actions []string
	tasks := &mockTaskPort{
		submitBidFunc: func(_ context.Context, req task.SubmitBidRequest) (domain.Task, error) {
			submitted = req
			return domain.Task{ID: req.TaskID}, nil
		},
		editBidFunc: func(_ context.Context, req task.EditBidRequest) (domain.Task, error) {
			edited = req
			return domain.Task{ID: req.TaskID}, nil
		},
		deleteBidFunc: func(_ context.Context, req task.BidActionRequest) (domain.Task, error) {
			actions = append(actions, "delete:"+req.Principal.ID+":"+req.TaskID+":"+req.BidID)
			return domain.Task{ID: req.TaskID}, nil
		},
		selectBidFunc: func(_ context.Context, req task.BidActionRequest) (domain.Task, error) {
			actions = append(actions, "select:"+req.Principal.ID+":"+req.TaskID+":"+req.BidID)
			return domain.Task{ID: req.TaskID, Status: domain.StatusAssigned}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, _ := doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids", "bidder-1", `{"amount":80,"message":"I can do it"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "bidder-1", submitted.Principal.ID)
	assert.Equal(t, "User bidder-1", submitted.Principal.DisplayName)
	assert.Equal(t, 80.0, submitted.Amount)
	assert.Equal(t, "I can do it", submitted.Message)

	status, _ = doRequest(t, app, "PUT", "/api/v1/tasks/t-1/bids/b-1", "bidder-1", `{"amount":70}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "b-1", edited.BidID)
	assert.Equal(t, 70.0, edited.Amount)

	status, _ = doRequest(t, app, "DELETE", "/api/v1/tasks/t-1/bids/b-1", "bidder-1", "")
	assert.Equal(t, http.StatusOK, status)
	status, body := doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids/b-2/select", "owner-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"assigned"`)

	assert.Equal(t, []string{"delete:bidder-1:t-1:b-1", "select:owner-1:t-1:b-2"}, actions)
}

func TestTaskActions(t *testing.T) {
	var calls []string
	record := func(name string) func(context.Context, task.TaskActionRequest) (domain.Task, error) {
		return func(_ context.Context, req task.TaskActionRequest) (domain.Task, error) {
			calls = append(calls, name+":"+req.Principal.ID+":"+req.TaskID)
			return domain.Task{ID: req.TaskID}, nil
		}
	}
	tasks := &mockTaskPort{
		completeFunc: record("complete"),
		releaseFunc:  record("release"),
		deleteFunc: func(_ context.Context, req task.TaskActionRequest) error {
			calls = append(calls, "delete:"+req.Principal.ID+":"+req.TaskID)
			return nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, _ := doRequest(t, app, "POST", "/api/v1/tasks/t-1/complete", "worker-1", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, app, "POST", "/api/v1/tasks/t-1/payment", "owner-1", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, app, "DELETE", "/api/v1/tasks/t-2", "owner-1", "")
	assert.Equal(t, http.StatusNoContent, status)

	assert.Equal(t, []string{"complete:worker-1:t-1", "release:owner-1:t-1", "delete:owner-1:t-2"}, calls)
}

func TestEditTaskBuildsPatch(t *testing.T) {
	var got task.EditTaskRequest
	tasks := &mockTaskPort{
		editTaskFunc: func(_ context.Context, req task.EditTaskRequest) (domain.Task, error) {
			got = req
			return domain.Task{ID: req.TaskID}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, _ := doRequest(t, app, "PUT", "/api/v1/tasks/t-1", "owner-1", `{"price":250,"deadline":"2026-11-30T12:00:00Z"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, got.Patch.Title)
	require.NotNil(t, got.Patch.Price)
	assert.Equal(t, 250.0, *got.Patch.Price)
	require.NotNil(t, got.Patch.Deadline)
	assert.Equal(t, time.Date(2026, 11, 30, 12, 0, 0, 0, time.UTC), got.Patch.Deadline.UTC())
}

func TestListTasksParsesQuery(t *testing.T) {
	var got domain.Query
	tasks := &mockTaskPort{
		listFunc: func(_ context.Context, q domain.Query) (task.ListTasksResponse, error) {
			got = q
			return task.ListTasksResponse{Tasks: []*domain.Task{{ID: "t-1"}}, Total: 1, Limit: 10}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, body := doRequest(t, app, "GET", "/api/v1/tasks?category=Web%20Development&minPrice=10&maxPrice=500&status=open,Assigned&q=logo&sort=price-desc&limit=10&offset=20", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"total":1`)
	assert.Equal(t, "Web Development", got.Category)
	assert.Equal(t, 10.0, got.MinPrice)
	assert.Equal(t, 500.0, got.MaxPrice)
	assert.Equal(t, []domain.Status{domain.StatusOpen, domain.StatusAssigned}, got.Statuses)
	assert.Equal(t, "logo", got.Search)
	assert.Equal(t, domain.SortPriceDesc, got.Sort)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, 20, got.Offset)

	status, body = doRequest(t, app, "GET", "/api/v1/tasks?minPrice=cheap", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "minPrice must be a number")
}

func TestGetTaskIsPublic(t *testing.T) {
	tasks := &mockTaskPort{
		getFunc: func(_ context.Context, id string) (domain.Task, error) {
			if id != "t-1" {
				return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
			}
			return domain.Task{ID: "t-1", Title: "Logo"}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, body := doRequest(t, app, "GET", "/api/v1/tasks/t-1", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"title":"Logo"`)

	status, _ = doRequest(t, app, "GET", "/api/v1/tasks/t-404", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDashboardRequiresAuth(t *testing.T) {
	tasks := &mockTaskPort{
		dashboardFunc: func(_ context.Context, p user.Principal) (domain.Dashboard, error) {
			return domain.Dashboard{Posted: []*domain.Task{{ID: "t-1", OwnerID: p.ID}}}, nil
		},
	}
	app := newTestApp(tasks, nil, 0)

	status, _ := doRequest(t, app, "GET", "/api/v1/profile/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doRequest(t, app, "GET", "/api/v1/profile/dashboard", "owner-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"ownerId":"owner-1"`)
}

func TestNotificationRoutes(t *testing.T) {
	var listed notification.ListNotificationsRequest
	notifications := &mockNotificationPort{
		listFunc: func(_ context.Context, req notification.ListNotificationsRequest) (notification.ListNotificationsResponse, error) {
			listed = req
			return notification.ListNotificationsResponse{
				Notifications: []notifdomain.Notification{{ID: "n-1", UserID: req.UserID, Message: domain.MsgBidSelected}},
				Unread:        1,
			}, nil
		},
		markReadFunc: func(_ context.Context, userID, id string) (notifdomain.Notification, error) {
			if userID != "u-1" {
				return notifdomain.Notification{}, fmt.Errorf("%w: notification belongs to another user", domain.ErrPermissionDenied)
			}
			return notifdomain.Notification{ID: id, UserID: userID, Read: true}, nil
		},
	}
	app := newTestApp(nil, notifications, 0)

	status, body := doRequest(t, app, "GET", "/api/v1/notifications?unread=true&limit=5", "u-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"n-1"`)
	assert.Equal(t, notification.ListNotificationsRequest{UserID: "u-1", UnreadOnly: true, Limit: 5}, listed)

	status, _ = doRequest(t, app, "POST", "/api/v1/notifications/n-1/read", "u-1", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, "POST", "/api/v1/notifications/n-1/read", "u-2", "")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestIdentityErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{"duplicate email", fmt.Errorf("register request failed: user with this email already exists"), http.StatusConflict, "User with this email already exists"},
		{"bad email", fmt.Errorf("register request failed: invalid email format"), http.StatusBadRequest, "Invalid email format"},
		{"short password", fmt.Errorf("register request failed: password must be at least 8 characters"), http.StatusBadRequest, "Password must be at least 8 characters"},
		{"long password", fmt.Errorf("register request failed: password must be at most 72 characters"), http.StatusBadRequest, "Password must be at most 72 characters"},
		{"profile", fmt.Errorf("register request failed: invalid profile: display name is required"), http.StatusBadRequest, "display name is required"},
		{"internal", fmt.Errorf("register request failed: disk full"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule(Config{})
			m.identityPort = &mockIdentityPort{
				registerFunc: func(context.Context, identity.RegisterRequest) (identity.UserResponse, error) {
					return identity.UserResponse{}, tt.err
				},
			}
			m.taskPort = &mockTaskPort{}
			m.notificationPort = &mockNotificationPort{}
			app := m.newApp(nil)

			status, body := doRequest(t, app, "POST", "/api/v1/auth/register", "", `{"email":"a@b.co","password":"secret123"}`)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Contains(t, body, tt.expectedMsg)
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	m := NewModule(Config{})
	m.identityPort = &mockIdentityPort{
		loginFunc: func(_ context.Context, email, _ string) (identity.TokenResponse, error) {
			if email == "ok@example.com" {
				return identity.TokenResponse{AccessToken: "access"}, nil
			}
			return identity.TokenResponse{}, fmt.Errorf("login request failed: invalid email or password")
		},
	}
	m.taskPort = &mockTaskPort{}
	m.notificationPort = &mockNotificationPort{}
	app := m.newApp(nil)

	status, _ := doRequest(t, app, "POST", "/api/v1/auth/login", "", `{"email":"x@example.com","password":"whatever1"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := doRequest(t, app, "POST", "/api/v1/auth/login", "", `{"email":"ok@example.com","password":"whatever1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "access")
}

func TestBidRateLimit(t *testing.T) {
	tasks := &mockTaskPort{
		submitBidFunc: func(_ context.Context, req task.SubmitBidRequest) (domain.Task, error) {
			return domain.Task{ID: req.TaskID}, nil
		},
	}
	app := newTestApp(tasks, nil, 2)

	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids", "bidder-1", `{"amount":10}`)
		require.Equal(t, http.StatusCreated, status)
	}
	status, body := doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids", "bidder-1", `{"amount":10}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "rate_limited")

	// Limits are per caller.
	status, _ = doRequest(t, app, "POST", "/api/v1/tasks/t-1/bids", "bidder-2", `{"amount":10}`)
	assert.Equal(t, http.StatusCreated, status)
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	app := newTestApp(nil, nil, 0)

	status, _ := doRequest(t, app, "GET", "/ws/tasks/t-1", "", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
