package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/khalidAdell/quick-task/domain/task"
)

// PaymentPort is used by the task lifecycle to release payments.
type PaymentPort interface {
	Release(ctx context.Context, instr task.PaymentInstruction) error
}

// PaymentAdapter implements PaymentPort using the service container.
type PaymentAdapter struct {
	container mono.ServiceContainer
}

var _ PaymentPort = (*PaymentAdapter)(nil)

func NewPaymentAdapter(container mono.ServiceContainer) *PaymentAdapter {
	return &PaymentAdapter{container: container}
}

// Release asks the payment module to transfer the funds. Lifecycle sentinels
// such as task.ErrPaymentFailed survive the round trip.
func (a *PaymentAdapter) Release(ctx context.Context, instr task.PaymentInstruction) error {
	var resp PaymentResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"release-payment",
		json.Marshal,
		json.Unmarshal,
		&instr,
		&resp,
	); err != nil {
		return task.FromRemote(fmt.Errorf("release-payment request failed: %w", err))
	}
	return nil
}
