package task

import (
	"slices"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusClosed    Status = "closed"
)

// PaymentCompleted is the payment status recorded once the gateway accepted the release.
const PaymentCompleted = "completed"

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// order is the position of s along open -> assigned -> completed -> closed.
func (s Status) order() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusAssigned:
		return 1
	case StatusCompleted:
		return 2
	case StatusClosed:
		return 3
	}
	return -1
}

// Bid is an offer to perform a task for a stated amount. Bids have no
// lifecycle of their own; they live and die with their task.
type Bid struct {
	ID             string    `json:"id"`
	BidderID       string    `json:"bidderId"`
	BidderName     string    `json:"bidderName"`
	BidderPhotoURL string    `json:"bidderPhotoURL,omitempty"`
	Amount         float64   `json:"amount"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Task is a unit of paid work posted by an owner.
type Task struct {
	ID            string    `gorm:"primaryKey;type:text" json:"id"`
	OwnerID       string    `gorm:"index;not null;type:text" json:"ownerId"`
	OwnerName     string    `gorm:"type:text" json:"ownerName,omitempty"`
	Title         string    `gorm:"not null;type:text" json:"title"`
	Category      string    `gorm:"index;type:text" json:"category"`
	Description   string    `gorm:"type:text" json:"description"`
	Price         float64   `gorm:"not null" json:"price"`
	Deadline      time.Time `json:"deadline"`
	Requirements  []string  `gorm:"serializer:json" json:"requirements"`
	Status        Status    `gorm:"index;not null;type:text" json:"status"`
	Bids          []Bid     `gorm:"serializer:json" json:"bids"`
	BidsCount     int       `gorm:"not null" json:"bidsCount"`
	WinningBid    *Bid      `gorm:"serializer:json" json:"winningBid,omitempty"`
	AssignedTo    string    `gorm:"index;type:text" json:"assignedTo,omitempty"`
	PaymentStatus string    `gorm:"type:text" json:"paymentStatus,omitempty"`
	PostedAt      time.Time `gorm:"index" json:"postedAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
	Version       int64     `gorm:"not null" json:"version"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.Requirements = slices.Clone(t.Requirements)
	c.Bids = slices.Clone(t.Bids)
	if t.WinningBid != nil {
		wb := *t.WinningBid
		c.WinningBid = &wb
	}
	return &c
}

// FindBid returns the bid with the given id.
func (t *Task) FindBid(bidID string) (Bid, bool) {
	for _, b := range t.Bids {
		if b.ID == bidID {
			return b, true
		}
	}
	return Bid{}, false
}

// BidBy returns the bid placed by bidderID, if any.
func (t *Task) BidBy(bidderID string) (Bid, bool) {
	for _, b := range t.Bids {
		if b.BidderID == bidderID {
			return b, true
		}
	}
	return Bid{}, false
}

// IsOwner reports whether userID posted the task.
func (t *Task) IsOwner(userID string) bool {
	return userID != "" && t.OwnerID == userID
}
