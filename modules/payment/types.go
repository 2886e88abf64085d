package payment

import (
	"time"

	domain "github.com/khalidAdell/quick-task/domain/payment"
	"github.com/khalidAdell/quick-task/domain/task"
)

// ReleasePaymentRequest asks the payment module to transfer funds for a task.
type ReleasePaymentRequest = task.PaymentInstruction

// PaymentResponse reports a ledger row.
type PaymentResponse struct {
	TaskID      string        `json:"taskId"`
	Amount      float64       `json:"amount"`
	RecipientID string        `json:"recipientId"`
	Currency    string        `json:"currency"`
	Status      domain.Status `json:"status"`
	Attempts    int           `json:"attempts"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PaymentStatusRequest looks up the ledger row of a task.
type PaymentStatusRequest struct {
	TaskID string `json:"taskId"`
}

// PaymentStatusResponse is empty-handed when Found is false.
type PaymentStatusResponse struct {
	Found   bool            `json:"found"`
	Payment PaymentResponse `json:"payment"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		TaskID:      p.TaskID,
		Amount:      p.Amount,
		RecipientID: p.RecipientID,
		Currency:    p.Currency,
		Status:      p.Status,
		Attempts:    p.Attempts,
		UpdatedAt:   p.UpdatedAt,
	}
}
