package notification

import "time"

// Notification informs a user of a lifecycle event concerning them.
// Only Read ever changes after creation.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"index;not null;type:text" json:"userId"`
	TaskID    string    `gorm:"index;type:text" json:"taskId,omitempty"`
	Message   string    `gorm:"not null;type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// TableName returns the table name for the Notification entity.
func (Notification) TableName() string {
	return "notifications"
}
