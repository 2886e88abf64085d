package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/khalidAdell/quick-task/domain/payment"
	"github.com/khalidAdell/quick-task/domain/task"
)

// claimLease is how long a pending claim blocks other releases of the same
// task. It outlives the gateway timeout so a live release is never overtaken.
const claimLease = 2 * time.Minute

// PaymentService releases payments through a gateway, consulting the ledger first.
type PaymentService struct {
	ledger  *Ledger
	gateway Gateway
	lease   time.Duration
	now     func() time.Time
}

func NewPaymentService(ledger *Ledger, gateway Gateway) *PaymentService {
	return &PaymentService{
		ledger:  ledger,
		gateway: gateway,
		lease:   claimLease,
		now:     time.Now,
	}
}

// Release transfers instr.Amount to instr.RecipientID. A task whose payment
// already succeeded is reported as released without another gateway call.
// While another release of the same task is in flight ErrConflict is returned.
func (s *PaymentService) Release(ctx context.Context, instr task.PaymentInstruction) (*domain.Payment, error) {
	if instr.TaskID == "" || instr.RecipientID == "" {
		return nil, fmt.Errorf("%w: task and recipient are required", task.ErrValidation)
	}
	if err := task.ValidateAmount(instr.Amount); err != nil {
		return nil, err
	}

	now := s.now()
	row := &domain.Payment{
		TaskID:      instr.TaskID,
		Amount:      instr.Amount,
		RecipientID: instr.RecipientID,
		Currency:    instr.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	claimed, current, err := s.ledger.Claim(ctx, row, now.Add(-s.lease))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to claim payment ledger row: %v", task.ErrStoreUnavailable, err)
	}
	if !claimed {
		if current != nil && current.Status == domain.StatusSucceeded {
			log.Printf("[payment] Task %s already paid, skipping gateway", instr.TaskID)
			return current, nil
		}
		return nil, fmt.Errorf("%w: a payment for task %s is already in progress", task.ErrConflict, instr.TaskID)
	}

	chargeErr := s.gateway.Charge(ctx, instr)
	row.UpdatedAt = s.now()
	if chargeErr != nil {
		row.Status = domain.StatusFailed
		row.LastError = chargeErr.Error()
	} else {
		row.Status = domain.StatusSucceeded
	}

	// The gateway outcome must be recorded even when the caller has gone away.
	if err := s.ledger.Save(context.WithoutCancel(ctx), row); err != nil {
		if chargeErr == nil {
			log.Printf("[payment] Warning: payment for task %s succeeded but ledger write failed: %v", instr.TaskID, err)
			return row, nil
		}
		log.Printf("[payment] Warning: failed to record failed payment for task %s: %v", instr.TaskID, err)
	}

	if chargeErr != nil {
		log.Printf("[payment] Payment for task %s failed (attempt %d): %v", instr.TaskID, row.Attempts, chargeErr)
		return nil, chargeErr
	}
	log.Printf("[payment] Released %.2f %s to %s for task %s via %s", instr.Amount, instr.Currency, instr.RecipientID, instr.TaskID, s.gateway.Name())
	return row, nil
}

// Status returns the ledger row for taskID, or nil when no payment was attempted.
func (s *PaymentService) Status(ctx context.Context, taskID string) (*domain.Payment, error) {
	p, err := s.ledger.Find(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read payment ledger: %v", task.ErrStoreUnavailable, err)
	}
	return p, nil
}
