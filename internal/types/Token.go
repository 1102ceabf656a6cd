/*

This file contains the token types: the strategy's fixed token basket and oracle prices.

*/

package types

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidBasket = errors.New("token basket is invalid")
	ErrTokenNotFound = errors.New("token is not part of the basket")
)

// TokenBasket is the ordered list of pool assets plus the index of the base asset.
// It is fixed once the strategy is initialized.
type TokenBasket struct {
	Tokens    []string `json:"tokens"`     // e.g., ["dai", "usdc", "usdt"]
	BaseIndex int      `json:"base_index"` // index of the underlying asset in Tokens
}

// NewTokenBasket validates and builds a basket.
func NewTokenBasket(tokens []string, baseIndex int) (TokenBasket, error) {
	b := TokenBasket{Tokens: append([]string(nil), tokens...), BaseIndex: baseIndex}
	if err := b.Validate(); err != nil {
		return TokenBasket{}, err
	}
	return b, nil
}

// Validate checks the basket has unique non-empty tokens and a base index inside it.
func (b TokenBasket) Validate() error {
	if len(b.Tokens) == 0 {
		return errors.Join(ErrInvalidBasket, errors.New("basket has no tokens"))
	}
	if b.BaseIndex < 0 || b.BaseIndex >= len(b.Tokens) {
		return errors.Join(ErrInvalidBasket, fmt.Errorf("base index %d out of range [0,%d)", b.BaseIndex, len(b.Tokens)))
	}
	seen := make(map[string]struct{}, len(b.Tokens))
	for i, t := range b.Tokens {
		if t == "" {
			return errors.Join(ErrInvalidBasket, fmt.Errorf("token %d is empty", i))
		}
		if _, dup := seen[t]; dup {
			return errors.Join(ErrInvalidBasket, fmt.Errorf("token %s listed twice", t))
		}
		seen[t] = struct{}{}
	}
	return nil
}

// Base returns the base (underlying) asset.
func (b TokenBasket) Base() string {
	return b.Tokens[b.BaseIndex]
}

// Len returns the number of tokens in the basket.
func (b TokenBasket) Len() int {
	return len(b.Tokens)
}

// IndexOf returns the position of token in the basket, or -1.
func (b TokenBasket) IndexOf(token string) int {
	for i, t := range b.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// Contains reports whether token belongs to the basket.
func (b TokenBasket) Contains(token string) bool {
	return b.IndexOf(token) >= 0
}

// TokenPrice is an oracle price expressed in 18 decimals per whole token, plus the token's decimals.
type TokenPrice struct {
	Price18  sdkmath.Int `json:"price_18"`
	Decimals int         `json:"decimals"` // e.g., 6 for usdc
}
