package payments

import (
	"fmt"

	"github.com/multivault/ledger/internal/domain"
)

// Floor enforces the minimum-payment precondition on mutating calls. A
// transfer-call additionally reserves a resolution budget on top of the
// floor, so a call that cannot afford its own resolution never starts.
type Floor struct {
	min           domain.Amount
	resolveBudget domain.Amount
}

// NewFloor parses the configured minimum payment and resolution budget.
func NewFloor(minPayment, resolveBudget string) (*Floor, error) {
	min, err := domain.ParseAmount(minPayment)
	if err != nil {
		return nil, fmt.Errorf("bad minimum payment %q: %w", minPayment, err)
	}
	budget, err := domain.ParseAmount(resolveBudget)
	if err != nil {
		return nil, fmt.Errorf("bad resolve budget %q: %w", resolveBudget, err)
	}
	return &Floor{min: min, resolveBudget: budget}, nil
}

// CheckPayment fails with ErrPrecheckFailed when the attached payment is
// below the configured floor.
func (f *Floor) CheckPayment(payment string) error {
	attached, err := domain.ParseAmount(payment)
	if err != nil {
		return fmt.Errorf("bad payment %q: %w", payment, domain.ErrPrecheckFailed)
	}
	if attached.Cmp(f.min) < 0 {
		return fmt.Errorf("payment %s below floor %s: %w", attached, f.min, domain.ErrPrecheckFailed)
	}
	return nil
}

// CheckCallBudget fails with ErrPrecheckFailed when the attached payment
// cannot cover the floor plus the reserved resolution budget.
func (f *Floor) CheckCallBudget(payment string) error {
	attached, err := domain.ParseAmount(payment)
	if err != nil {
		return fmt.Errorf("bad payment %q: %w", payment, domain.ErrPrecheckFailed)
	}
	required, err := f.min.Add(f.resolveBudget)
	if err != nil {
		return fmt.Errorf("floor plus budget overflows: %w", domain.ErrPrecheckFailed)
	}
	if attached.Cmp(required) < 0 {
		return fmt.Errorf("payment %s below floor plus resolve budget %s: %w", attached, required, domain.ErrPrecheckFailed)
	}
	return nil
}
