package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// maxRawDigits is the number of decimal digits of 2^256-1.
const maxRawDigits = 78

var (
	ErrTooLarge   = errors.New("amount does not fit in uint256")
	ErrTooPrecise = errors.New("amount has too many decimal places")
)

// FromRaw converts an on-chain integer amount into token units: raw / 10^decimals.
// The result is exact, no rounding takes place.
func FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ToRaw converts a token-unit amount into the token's smallest integer unit. The
// result always fits a uint256 contract argument.
func ToRaw(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	if amount.IsZero() {
		return new(big.Int), nil
	}

	// Bound the exponent before anything materializes 10^exp
	if int64(amount.NumDigits())+int64(amount.Exponent())+int64(decimals) > maxRawDigits {
		return nil, ErrTooLarge
	}

	scaled := amount.Shift(int32(decimals))
	if exp := scaled.Exponent(); exp < 0 && -int64(exp) > int64(scaled.NumDigits()) {
		return nil, fmt.Errorf("%w: more than %d", ErrTooPrecise, decimals)
	}
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d", ErrTooPrecise, decimals)
	}

	raw := scaled.BigInt()
	if raw.Cmp(math.MaxBig256) > 0 {
		return nil, ErrTooLarge
	}
	return raw, nil
}

// ParseAmount parses user input such as "1.5" or "100".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", s)
	}
	return d, nil
}
