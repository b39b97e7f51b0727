package ethereum

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// ParseUnits converts a decimal amount in whole units (ie. "1.5" ether) into the integer amount of the smallest
// unit given decimals. Amounts that are negative or finer than the smallest unit are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidAmount, amount)
	}

	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", types.ErrInvalidAmount, amount)
	}

	d = d.Shift(int32(decimals))
	if !d.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", types.ErrInvalidAmount, amount, decimals)
	}

	return d.BigInt(), nil
}

// FormatUnits is the inverse of ParseUnits, trailing zeroes are dropped.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}

	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}
