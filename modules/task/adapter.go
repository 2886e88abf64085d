package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
)

// TaskPort is how the API reaches the task lifecycle.
type TaskPort interface {
	Create(ctx context.Context, p user.Principal, c domain.Content) (domain.Task, error)
	Get(ctx context.Context, taskID string) (domain.Task, error)
	List(ctx context.Context, q domain.Query) (ListTasksResponse, error)
	Dashboard(ctx context.Context, p user.Principal) (domain.Dashboard, error)
	SubmitBid(ctx context.Context, req SubmitBidRequest) (domain.Task, error)
	EditBid(ctx context.Context, req EditBidRequest) (domain.Task, error)
	DeleteBid(ctx context.Context, req BidActionRequest) (domain.Task, error)
	SelectBid(ctx context.Context, req BidActionRequest) (domain.Task, error)
	EditTask(ctx context.Context, req EditTaskRequest) (domain.Task, error)
	DeleteTask(ctx context.Context, req TaskActionRequest) error
	CompleteTask(ctx context.Context, req TaskActionRequest) (domain.Task, error)
	ReleasePayment(ctx context.Context, req TaskActionRequest) (domain.Task, error)
}

// TaskAdapter implements TaskPort using the service container.
type TaskAdapter struct {
	container mono.ServiceContainer
}

var _ TaskPort = (*TaskAdapter)(nil)

func NewTaskAdapter(container mono.ServiceContainer) *TaskAdapter {
	return &TaskAdapter{container: container}
}

// call restores lifecycle sentinels on the way back so callers can use errors.Is.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx, container, service, json.Marshal, json.Unmarshal, req, resp,
	); err != nil {
		return domain.FromRemote(fmt.Errorf("%s request failed: %w", service, err))
	}
	return nil
}

func (a *TaskAdapter) Create(ctx context.Context, p user.Principal, c domain.Content) (domain.Task, error) {
	req := CreateTaskRequest{Principal: p, Content: c}
	var resp domain.Task
	err := call(ctx, a.container, "create-task", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) Get(ctx context.Context, taskID string) (domain.Task, error) {
	req := GetTaskRequest{TaskID: taskID}
	var resp domain.Task
	err := call(ctx, a.container, "get-task", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) List(ctx context.Context, q domain.Query) (ListTasksResponse, error) {
	req := ListTasksRequest{Query: q}
	var resp ListTasksResponse
	err := call(ctx, a.container, "list-tasks", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) Dashboard(ctx context.Context, p user.Principal) (domain.Dashboard, error) {
	req := DashboardRequest{Principal: p}
	var resp domain.Dashboard
	err := call(ctx, a.container, "dashboard", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) SubmitBid(ctx context.Context, req SubmitBidRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "submit-bid", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) EditBid(ctx context.Context, req EditBidRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "edit-bid", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) DeleteBid(ctx context.Context, req BidActionRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "delete-bid", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) SelectBid(ctx context.Context, req BidActionRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "select-bid", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) EditTask(ctx context.Context, req EditTaskRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "edit-task", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) DeleteTask(ctx context.Context, req TaskActionRequest) error {
	var resp DeleteTaskResponse
	return call(ctx, a.container, "delete-task", &req, &resp)
}

func (a *TaskAdapter) CompleteTask(ctx context.Context, req TaskActionRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "complete-task", &req, &resp)
	return resp, err
}

func (a *TaskAdapter) ReleasePayment(ctx context.Context, req TaskActionRequest) (domain.Task, error) {
	var resp domain.Task
	err := call(ctx, a.container, "release-task-payment", &req, &resp)
	return resp, err
}
