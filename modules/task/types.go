package task

import (
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
)

// CreateTaskRequest posts a new task on behalf of Principal.
type CreateTaskRequest struct {
	Principal user.Principal `json:"principal"`
	Content   domain.Content `json:"content"`
}

// GetTaskRequest fetches one task.
type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

// ListTasksRequest lists tasks matching Query.
type ListTasksRequest struct {
	Query domain.Query `json:"query"`
}

// ListTasksResponse is a page of tasks.
type ListTasksResponse struct {
	Tasks  []*domain.Task `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// DashboardRequest fetches the caller's dashboard.
type DashboardRequest struct {
	Principal user.Principal `json:"principal"`
}

// SubmitBidRequest places a bid.
type SubmitBidRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	Amount    float64        `json:"amount"`
	Message   string         `json:"message,omitempty"`
}

// EditBidRequest changes a bid amount.
type EditBidRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	BidID     string         `json:"bid_id"`
	Amount    float64        `json:"amount"`
}

// BidActionRequest addresses one bid of a task (delete, select).
type BidActionRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	BidID     string         `json:"bid_id"`
}

// EditTaskRequest applies a content patch.
type EditTaskRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	Patch     domain.Patch   `json:"patch"`
}

// TaskActionRequest addresses a whole task (delete, complete, release payment).
type TaskActionRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
}

// DeleteTaskResponse confirms a deletion.
type DeleteTaskResponse struct {
	TaskID  string `json:"task_id"`
	Deleted bool   `json:"deleted"`
}
