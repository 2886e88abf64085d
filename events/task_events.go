package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/task"
)

// TaskChangedEvent carries the full snapshot of a task after a committed write.
// Deleted snapshots carry the last known state with Deleted set.
type TaskChangedEvent struct {
	Task      domain.Task `json:"task"`
	Action    string      `json:"action"`
	ActorID   string      `json:"actor_id"`
	Deleted   bool        `json:"deleted,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// TaskChangedV1 is the typed event definition for task snapshots.
// Subject: events.task.v1.task-changed
var TaskChangedV1 = helper.EventDefinition[TaskChangedEvent](
	"task", "TaskChanged", "v1",
)

// TaskCreatedEvent is emitted when a new task is posted.
type TaskCreatedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskCreatedV1 is the typed event definition for task creation.
// Subject: events.task.v1.task-created
var TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
	"task", "TaskCreated", "v1",
)

// BidPlacedEvent is emitted when a bid is submitted.
type BidPlacedEvent struct {
	TaskID   string    `json:"task_id"`
	BidID    string    `json:"bid_id"`
	BidderID string    `json:"bidder_id"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// BidPlacedV1 is the typed event definition for bid submission.
// Subject: events.task.v1.bid-placed
var BidPlacedV1 = helper.EventDefinition[BidPlacedEvent](
	"task", "BidPlaced", "v1",
)

// TaskAssignedEvent is emitted when the owner selects a winning bid.
type TaskAssignedEvent struct {
	TaskID     string    `json:"task_id"`
	OwnerID    string    `json:"owner_id"`
	AssignedTo string    `json:"assigned_to"`
	BidID      string    `json:"bid_id"`
	Amount     float64   `json:"amount"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TaskAssignedV1 is the typed event definition for bid selection.
// Subject: events.task.v1.task-assigned
var TaskAssignedV1 = helper.EventDefinition[TaskAssignedEvent](
	"task", "TaskAssigned", "v1",
)

// TaskCompletedEvent is emitted when the assignee completes the task.
type TaskCompletedEvent struct {
	TaskID      string    `json:"task_id"`
	OwnerID     string    `json:"owner_id"`
	AssignedTo  string    `json:"assigned_to"`
	CompletedAt time.Time `json:"completed_at"`
}

// TaskCompletedV1 is the typed event definition for task completion.
// Subject: events.task.v1.task-completed
var TaskCompletedV1 = helper.EventDefinition[TaskCompletedEvent](
	"task", "TaskCompleted", "v1",
)

// PaymentReleasedEvent is emitted when payment succeeded and the task closed.
type PaymentReleasedEvent struct {
	TaskID      string    `json:"task_id"`
	OwnerID     string    `json:"owner_id"`
	RecipientID string    `json:"recipient_id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ReleasedAt  time.Time `json:"released_at"`
}

// PaymentReleasedV1 is the typed event definition for payment release.
// Subject: events.task.v1.payment-released
var PaymentReleasedV1 = helper.EventDefinition[PaymentReleasedEvent](
	"task", "PaymentReleased", "v1",
)

// TaskDeletedEvent is emitted when the owner deletes an open task.
type TaskDeletedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TaskDeletedV1 is the typed event definition for task deletion.
// Subject: events.task.v1.task-deleted
var TaskDeletedV1 = helper.EventDefinition[TaskDeletedEvent](
	"task", "TaskDeleted", "v1",
)
