/*
This file contains common utility functions for converting between different types,
particularly for SDK math operations and precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling.
// Negative amounts are allowed so signed deltas (earned - lost) can be exported.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 36 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 36)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	result := decAmount.Quo(sdkmath.LegacyNewDecFromInt(Pow10(precision)))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// Float64ToSDKInt converts a float64 to SDK Int with proper precision handling
func Float64ToSDKInt(amount float64, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount <= 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Use string conversion to avoid floating point precision issues
	formatStr := fmt.Sprintf("%%.%df", precision)
	decAmount, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf(formatStr, amount))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	return decAmount.MulInt(Pow10(precision)).TruncateInt(), nil
}

// ParseInt parses a base-10 integer string into an SDK Int. Empty strings are zero.
func ParseInt(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, s)
	}
	return v, nil
}
