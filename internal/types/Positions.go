/*

This file contains the types describing borrow positions: conversion plans and venue quotes.
Positions themselves live in the lending aggregator; the core only reads aggregate figures.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// EntryKind defines what is held fixed when sizing a new borrow.
type EntryKind int

const (
	// EntryKindExactCollateralIn uses the whole source amount as collateral.
	EntryKindExactCollateralIn EntryKind = iota
	// EntryKindExactProportion splits the source amount between collateral and a kept part.
	EntryKindExactProportion
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindExactCollateralIn:
		return "EXACT_COLLATERAL_IN"
	case EntryKindExactProportion:
		return "EXACT_PROPORTION"
	default:
		return "UNKNOWN"
	}
}

// ConversionPlan asks the aggregator to borrow TargetAsset against SourceAsset.
type ConversionPlan struct {
	SourceAsset string      `json:"source_asset"` // collateral asset
	TargetAsset string      `json:"target_asset"` // borrow asset
	AmountIn    sdkmath.Int `json:"amount_in"`
	EntryKind   EntryKind   `json:"entry_kind"`
	// Proportions is used by EXACT_PROPORTION only: [collateral part, kept part], value-normalized.
	Proportions [2]sdkmath.Int `json:"proportions,omitempty"`
	// Threshold is the minimum borrow amount a single venue must produce to be used.
	Threshold sdkmath.Int `json:"threshold"`
}

// VenueQuote is the maximum collateral/borrow pair a lending venue can serve for a plan.
type VenueQuote struct {
	VenueID             string      `json:"venue_id"`
	CollateralAmountOut sdkmath.Int `json:"collateral_amount_out"`
	BorrowAmountOut     sdkmath.Int `json:"borrow_amount_out"`
	AprEstimate18       sdkmath.Int `json:"apr_estimate_18"` // signed; lower is cheaper
}

// DebtStatus is the aggregated debt of one (collateral, borrow) pair across all venues.
type DebtStatus struct {
	TotalDebt       sdkmath.Int `json:"total_debt"`
	TotalCollateral sdkmath.Int `json:"total_collateral"`
}

// HasDebt reports whether there is any outstanding debt.
func (d DebtStatus) HasDebt() bool {
	return !d.TotalDebt.IsNil() && d.TotalDebt.IsPositive()
}
