package process

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Spok95/batch-weighing/internal/apperr"
)

// Window is the symmetric acceptance band around a target quantity.
type Window struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// ToleranceWindow computes [target - target*pct/100, target + target*pct/100].
// Decimal arithmetic keeps the bounds exact, so 95 and 105 are inside the
// window of target 100 at 5 percent and 94.99 is not.
func ToleranceWindow(target, pct float64) Window {
	t := decimal.NewFromFloat(target)
	allowed := t.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
	return Window{Min: t.Sub(allowed), Max: t.Add(allowed)}
}

func (w Window) Contains(qty float64) bool {
	q := decimal.NewFromFloat(qty)
	return q.GreaterThanOrEqual(w.Min) && q.LessThanOrEqual(w.Max)
}

// CheckTolerance validates the measurement inputs and the quantity itself.
// Zero is never a legitimate value for any of them.
func CheckTolerance(qty, target, pct float64) error {
	switch {
	case pct <= 0:
		return fmt.Errorf("%w: tolerance is required", apperr.ErrBadRequest)
	case target <= 0:
		return fmt.Errorf("%w: target quantity is required", apperr.ErrBadRequest)
	case qty <= 0:
		return fmt.Errorf("%w: quantity is required", apperr.ErrBadRequest)
	}
	w := ToleranceWindow(target, pct)
	if !w.Contains(qty) {
		return fmt.Errorf("%w: quantity %s outside [%s, %s]", apperr.ErrOutOfTolerance,
			decimal.NewFromFloat(qty), w.Min, w.Max)
	}
	return nil
}
