package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khalidAdell/quick-task/domain/task"
)

// Gateway transfers the winning bid amount to the assignee.
type Gateway interface {
	Charge(ctx context.Context, instr task.PaymentInstruction) error
	Name() string
}

// HTTPGateway posts payment instructions to an external payment API.
type HTTPGateway struct {
	baseURL string
	token   string
	timeout time.Duration
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway client for baseURL.
func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
	}
}

func (g *HTTPGateway) Name() string {
	return "http"
}

// Charge sends POST {baseURL}/api/payments. Any non-2xx answer or transport
// error is reported as ErrPaymentFailed. The task id doubles as idempotency key.
func (g *HTTPGateway) Charge(ctx context.Context, instr task.PaymentInstruction) error {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: deadline exceeded before calling the gateway", task.ErrPaymentFailed)
	}

	agent := fiber.Post(g.baseURL + "/api/payments")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	agent.Set("Idempotency-Key", instr.TaskID)
	agent.JSON(instr)
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: gateway request failed: %v", task.ErrPaymentFailed, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("%w: gateway answered %d: %s", task.ErrPaymentFailed, code, truncate(string(body), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SandboxGateway accepts every payment. It is used when no gateway URL is
// configured. Like a real gateway it honours the idempotency key: a task
// is transferred at most once.
type SandboxGateway struct {
	mu      sync.Mutex
	charged map[string]struct{}
}

var _ Gateway = (*SandboxGateway)(nil)

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{charged: make(map[string]struct{})}
}

func (g *SandboxGateway) Name() string {
	return "sandbox"
}

func (g *SandboxGateway) Charge(_ context.Context, instr task.PaymentInstruction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, done := g.charged[instr.TaskID]; done {
		log.Printf("[payment] Sandbox replayed transfer for task %s (idempotency key seen)", instr.TaskID)
		return nil
	}
	g.charged[instr.TaskID] = struct{}{}
	log.Printf("[payment] Sandbox transfer of %.2f %s to %s for task %s", instr.Amount, instr.Currency, instr.RecipientID, instr.TaskID)
	return nil
}

// Transfers returns the number of distinct tasks paid so far.
func (g *SandboxGateway) Transfers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charged)
}
