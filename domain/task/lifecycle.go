package task

import (
	"fmt"
	"slices"
	"time"

	"github.com/khalidAdell/quick-task/domain/user"
)

// Notification messages emitted by lifecycle transitions.
const (
	MsgBidSelected   = "Your bid has been selected!"
	MsgTaskCompleted = "Your task has been completed!"
)

// Notice is a notification the caller must emit after the transition is committed.
type Notice struct {
	UserID  string
	TaskID  string
	Message string
}

// Event is a named lifecycle event applied to a task.
type Event interface {
	Name() string
}

// SubmitBid places a new bid. ID and At are supplied by the caller so that
// Apply stays deterministic.
type SubmitBid struct {
	ID      string
	Amount  float64
	Message string
	At      time.Time
}

// EditBid replaces the amount of an existing bid.
type EditBid struct {
	BidID  string
	Amount float64
	At     time.Time
}

// DeleteBid withdraws a bid.
type DeleteBid struct {
	BidID string
}

// SelectBid assigns the task to the bidder of BidID.
type SelectBid struct {
	BidID string
}

// EditTask changes content fields.
type EditTask struct {
	Patch Patch
	At    time.Time
}

// DeleteTask removes the task and its bids.
type DeleteTask struct{}

// CompleteTask marks the assigned work as done.
type CompleteTask struct{}

// MarkPaid records a successful payment release and closes the task.
type MarkPaid struct {
	Currency string
}

func (SubmitBid) Name() string    { return "submitBid" }
func (EditBid) Name() string      { return "editBid" }
func (DeleteBid) Name() string    { return "deleteBid" }
func (SelectBid) Name() string    { return "selectBid" }
func (EditTask) Name() string     { return "editTask" }
func (DeleteTask) Name() string   { return "deleteTask" }
func (CompleteTask) Name() string { return "completeTask" }
func (MarkPaid) Name() string     { return "releasePayment" }

// New builds an open task owned by p. Content must already be validated.
func New(id string, p user.Principal, c Content, now time.Time) (*Task, error) {
	if p.Anonymous() {
		return nil, denied("you must be signed in to post a task")
	}
	return &Task{
		ID:           id,
		OwnerID:      p.ID,
		OwnerName:    p.DisplayName,
		Title:        c.Title,
		Category:     c.Category,
		Description:  c.Description,
		Price:        c.Price,
		Deadline:     c.Deadline,
		Requirements: slices.Clone(c.Requirements),
		Status:       StatusOpen,
		Bids:         []Bid{},
		BidsCount:    0,
		PostedAt:     now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}

// Apply runs ev against current on behalf of p. It never mutates current.
// On success it returns the next task state and the notices to emit once
// that state is committed. For DeleteTask the next state is nil.
func Apply(current *Task, p user.Principal, ev Event) (*Task, []Notice, error) {
	if current == nil {
		return nil, nil, notFound("task does not exist")
	}
	if p.Anonymous() {
		return nil, nil, denied("you must be signed in to %s", describe(ev))
	}

	next := current.Clone()
	var notices []Notice
	var err error

	switch e := ev.(type) {
	case SubmitBid:
		err = submitBid(next, p, e)
	case EditBid:
		err = editBid(next, p, e)
	case DeleteBid:
		err = deleteBid(next, p, e)
	case SelectBid:
		notices, err = selectBid(next, p, e)
	case EditTask:
		err = editTask(next, p, e)
	case DeleteTask:
		return nil, nil, deleteTask(current, p)
	case CompleteTask:
		notices, err = completeTask(next, p)
	case MarkPaid:
		notices, err = markPaid(next, p, e)
	default:
		return nil, nil, invalid("unknown event %T", ev)
	}
	if err != nil {
		return nil, nil, err
	}

	if next.Status.order() < current.Status.order() {
		return nil, nil, invalidState("status cannot move from %s back to %s", current.Status, next.Status)
	}
	next.BidsCount = len(next.Bids)
	return next, notices, nil
}

func submitBid(t *Task, p user.Principal, e SubmitBid) error {
	if t.IsOwner(p.ID) {
		return denied("you cannot bid on your own task")
	}
	if _, ok := t.BidBy(p.ID); ok {
		return denied("you have already placed a bid on this task; edit your existing bid instead")
	}
	if t.Status != StatusOpen {
		return invalidState("bids can only be placed on open tasks (task is %s)", t.Status)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if e.ID == "" {
		return invalid("bid id is required")
	}
	if _, dup := t.FindBid(e.ID); dup {
		return invalid("bid id %s is already in use", e.ID)
	}
	t.Bids = append(t.Bids, Bid{
		ID:             e.ID,
		BidderID:       p.ID,
		BidderName:     p.DisplayName,
		BidderPhotoURL: p.PhotoURL,
		Amount:         e.Amount,
		Message:        e.Message,
		Timestamp:      e.At,
	})
	t.UpdatedAt = e.At
	return nil
}

func editBid(t *Task, p user.Principal, e EditBid) error {
	idx := slices.IndexFunc(t.Bids, func(b Bid) bool { return b.ID == e.BidID })
	if idx < 0 {
		return notFound("bid %s does not exist on this task", e.BidID)
	}
	if t.Bids[idx].BidderID != p.ID {
		return denied("you can only edit your own bid")
	}
	if t.Status != StatusOpen {
		return invalidState("bids can only be edited while the task is open (task is %s)", t.Status)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	t.Bids[idx].Amount = e.Amount
	t.Bids[idx].Timestamp = e.At
	t.UpdatedAt = e.At
	return nil
}

func deleteBid(t *Task, p user.Principal, e DeleteBid) error {
	idx := slices.IndexFunc(t.Bids, func(b Bid) bool { return b.ID == e.BidID })
	if idx < 0 {
		return notFound("bid %s does not exist on this task", e.BidID)
	}
	if t.Bids[idx].BidderID != p.ID {
		return denied("you can only withdraw your own bid")
	}
	if t.Status != StatusOpen {
		return invalidState("bids can only be withdrawn while the task is open (task is %s)", t.Status)
	}
	t.Bids = slices.Delete(t.Bids, idx, idx+1)
	return nil
}

func selectBid(t *Task, p user.Principal, e SelectBid) ([]Notice, error) {
	if !t.IsOwner(p.ID) {
		return nil, denied("only the task owner can select a bid")
	}
	if t.Status != StatusOpen {
		return nil, invalidState("a bid can only be selected while the task is open (task is %s)", t.Status)
	}
	bid, ok := t.FindBid(e.BidID)
	if !ok {
		return nil, notFound("bid %s does not exist on this task", e.BidID)
	}
	t.WinningBid = &bid
	t.AssignedTo = bid.BidderID
	t.Status = StatusAssigned
	return []Notice{{UserID: bid.BidderID, TaskID: t.ID, Message: MsgBidSelected}}, nil
}

func editTask(t *Task, p user.Principal, e EditTask) error {
	if !t.IsOwner(p.ID) {
		return denied("only the task owner can edit this task")
	}
	if t.Status != StatusOpen && t.Status != StatusAssigned {
		return invalidState("a %s task can no longer be edited", t.Status)
	}
	if err := applyPatch(t, e.Patch, e.At); err != nil {
		return err
	}
	t.UpdatedAt = e.At
	return nil
}

func deleteTask(t *Task, p user.Principal) error {
	if !t.IsOwner(p.ID) {
		return denied("only the task owner can delete this task")
	}
	if t.Status != StatusOpen {
		return invalidState("only open tasks can be deleted (task is %s)", t.Status)
	}
	return nil
}

func completeTask(t *Task, p user.Principal) ([]Notice, error) {
	if t.AssignedTo == "" || t.AssignedTo != p.ID {
		return nil, denied("only the assigned bidder can complete this task")
	}
	if t.Status != StatusAssigned {
		return nil, invalidState("only assigned tasks can be completed (task is %s)", t.Status)
	}
	t.Status = StatusCompleted
	return []Notice{{UserID: t.OwnerID, TaskID: t.ID, Message: MsgTaskCompleted}}, nil
}

func markPaid(t *Task, p user.Principal, e MarkPaid) ([]Notice, error) {
	payment, err := PreparePayment(t, p, e.Currency)
	if err != nil {
		return nil, err
	}
	t.PaymentStatus = PaymentCompleted
	t.Status = StatusClosed

	amount := formatAmount(payment.Amount, payment.Currency)
	return []Notice{
		{
			UserID:  t.OwnerID,
			TaskID:  t.ID,
			Message: fmt.Sprintf("Payment of %s for %q has been released.", amount, t.Title),
		},
		{
			UserID:  payment.RecipientID,
			TaskID:  t.ID,
			Message: fmt.Sprintf("You have received a payment of %s for %q.", amount, t.Title),
		},
	}, nil
}

// PaymentInstruction is what the payment gateway is asked to transfer.
type PaymentInstruction struct {
	TaskID      string  `json:"taskId"`
	Amount      float64 `json:"amount"`
	RecipientID string  `json:"recipientId"`
	Currency    string  `json:"currency"`
}

// PreparePayment checks the releasePayment guard and returns the transfer to request.
func PreparePayment(t *Task, p user.Principal, currency string) (PaymentInstruction, error) {
	if p.Anonymous() {
		return PaymentInstruction{}, denied("you must be signed in to release payment")
	}
	if !t.IsOwner(p.ID) {
		return PaymentInstruction{}, denied("only the task owner can release payment")
	}
	if t.PaymentStatus != "" || t.Status == StatusClosed {
		return PaymentInstruction{}, invalidState("payment has already been released for this task")
	}
	if t.Status != StatusCompleted {
		return PaymentInstruction{}, invalidState("payment can only be released for completed tasks (task is %s)", t.Status)
	}
	if t.WinningBid == nil {
		return PaymentInstruction{}, invalidState("task has no winning bid")
	}
	return PaymentInstruction{
		TaskID:      t.ID,
		Amount:      t.WinningBid.Amount,
		RecipientID: t.WinningBid.BidderID,
		Currency:    currency,
	}, nil
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func describe(ev Event) string {
	switch ev.(type) {
	case SubmitBid:
		return "place a bid"
	case EditBid:
		return "edit a bid"
	case DeleteBid:
		return "withdraw a bid"
	case SelectBid:
		return "select a bid"
	case EditTask:
		return "edit a task"
	case DeleteTask:
		return "delete a task"
	case CompleteTask:
		return "complete a task"
	case MarkPaid:
		return "release payment"
	}
	return "change a task"
}
