package payment

import (
	"context"
	"errors"
	"time"

	domain "github.com/khalidAdell/quick-task/domain/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger records one row per task so a released payment is never requested twice.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Find returns the row for taskID, or nil when none exists.
func (l *Ledger) Find(ctx context.Context, taskID string) (*domain.Payment, error) {
	var p domain.Payment
	result := l.db.WithContext(ctx).First(&p, "task_id = ?", taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &p, nil
}

// Save inserts or replaces the row for p.TaskID.
func (l *Ledger) Save(ctx context.Context, p *domain.Payment) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "recipient_id", "currency", "status", "attempts", "last_error", "updated_at"}),
	}).Create(p).Error
}

// Claim marks the payment for row.TaskID as pending so that only one release
// reaches the gateway. A missing or failed row can be claimed, and so can a
// pending row last touched before staleBefore. On success row holds the
// claimed state. When the claim is refused the current row is returned.
func (l *Ledger) Claim(ctx context.Context, row *domain.Payment, staleBefore time.Time) (bool, *domain.Payment, error) {
	row.Status = domain.StatusPending
	row.Attempts = 1
	row.LastError = ""

	db := l.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, row, nil
	}

	res = db.Model(&domain.Payment{}).
		Where("task_id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			row.TaskID, domain.StatusFailed, domain.StatusPending, staleBefore).
		Updates(map[string]any{
			"amount":       row.Amount,
			"recipient_id": row.RecipientID,
			"currency":     row.Currency,
			"status":       domain.StatusPending,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   "",
			"updated_at":   row.UpdatedAt,
		})
	if res.Error != nil {
		return false, nil, res.Error
	}

	current, err := l.Find(ctx, row.TaskID)
	if err != nil {
		return false, nil, err
	}
	if res.RowsAffected == 1 && current != nil {
		*row = *current
		return true, row, nil
	}
	return false, current, nil
}
