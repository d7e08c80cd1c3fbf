package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for every amount (numeric(18,4)).
const Scale int32 = 4

// ValidatePositive rejects zero, negative, and over-precise amounts.
func ValidatePositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%s must be greater than zero", field)
	}
	return ValidateScale(field, amount)
}

// ValidateScale rejects amounts that would be rounded by the column type.
func ValidateScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(Scale)) {
		return fmt.Errorf("%s supports at most %d decimal places", field, Scale)
	}
	return nil
}
