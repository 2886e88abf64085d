package payment

import "time"

// Status is the outcome of the last release attempt for a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment is the ledger row kept per task. A pending row means a release
// holds the task and is talking to the gateway. A succeeded row means the
// gateway accepted the transfer and it must never be requested again.
type Payment struct {
	TaskID      string  `gorm:"primaryKey;type:text"`
	Amount      float64 `gorm:"not null"`
	RecipientID string  `gorm:"not null;type:text"`
	Currency    string  `gorm:"not null;type:text"`
	Status      Status  `gorm:"not null;type:text"`
	Attempts    int     `gorm:"not null"`
	LastError   string  `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for the Payment entity.
func (Payment) TableName() string {
	return "payments"
}
