package task

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
	domain "github.com/khalidAdell/quick-task/domain/task"
)

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (domain.Task, error) {
	t, err := m.manager.Create(ctx, req.Principal, req.Content)
	if err != nil {
		return domain.Task{}, err
	}
	log.Printf("[task] Created task %s (%s) for %s", t.ID, t.Title, t.OwnerID)
	return *t, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (domain.Task, error) {
	t, err := m.manager.Get(ctx, req.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	return *t, nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	q, err := req.Query.Normalize()
	if err != nil {
		return ListTasksResponse{}, err
	}
	tasks, total, err := m.manager.List(ctx, q)
	if err != nil {
		return ListTasksResponse{}, err
	}
	return ListTasksResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}, nil
}

func (m *TaskModule) dashboard(ctx context.Context, req DashboardRequest, _ *mono.Msg) (domain.Dashboard, error) {
	return m.manager.Dashboard(ctx, req.Principal)
}

func (m *TaskModule) submitBid(ctx context.Context, req SubmitBidRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.SubmitBid(ctx, req.Principal, req.TaskID, req.Amount, req.Message))
}

func (m *TaskModule) editBid(ctx context.Context, req EditBidRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.EditBid(ctx, req.Principal, req.TaskID, req.BidID, req.Amount))
}

func (m *TaskModule) deleteBid(ctx context.Context, req BidActionRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.DeleteBid(ctx, req.Principal, req.TaskID, req.BidID))
}

func (m *TaskModule) selectBid(ctx context.Context, req BidActionRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.SelectBid(ctx, req.Principal, req.TaskID, req.BidID))
}

func (m *TaskModule) editTask(ctx context.Context, req EditTaskRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.EditTask(ctx, req.Principal, req.TaskID, req.Patch))
}

func (m *TaskModule) deleteTask(ctx context.Context, req TaskActionRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.manager.DeleteTask(ctx, req.Principal, req.TaskID); err != nil {
		return DeleteTaskResponse{}, err
	}
	log.Printf("[task] Deleted task %s", req.TaskID)
	return DeleteTaskResponse{TaskID: req.TaskID, Deleted: true}, nil
}

func (m *TaskModule) completeTask(ctx context.Context, req TaskActionRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.CompleteTask(ctx, req.Principal, req.TaskID))
}

func (m *TaskModule) releasePayment(ctx context.Context, req TaskActionRequest, _ *mono.Msg) (domain.Task, error) {
	return deref(m.manager.ReleasePayment(ctx, req.Principal, req.TaskID))
}

func deref(t *domain.Task, err error) (domain.Task, error) {
	if err != nil {
		return domain.Task{}, err
	}
	return *t, nil
}
