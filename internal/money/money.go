package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOutOfRange      = errors.New("amount out of range")
)

const scale = 2

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ParseMinor converts a decimal string such as "1500.50" into minor units.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE") {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value.Exponent() < -scale && !value.Equal(value.Round(scale)) {
		return 0, ErrTooManyDecimals
	}
	minor := value.Mul(hundred)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrOutOfRange
	}
	return minor.IntPart(), nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -scale).StringFixed(scale)
}

// AddChecked returns a+b or false when the sum does not fit in int64.
func AddChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
