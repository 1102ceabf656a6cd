package config

import (
	"github.com/rs/zerolog/log"
)

// Collaborator addresses loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// SplitterAddress is the upstream splitter, the only caller of doHardWork.
	SplitterAddress string
	// AggregatorAddress is the lending aggregator, the only caller of requirePayAmountBack.
	AggregatorAddress string
	// OperatorAddress may change thresholds, compound ratio and reinvest threshold.
	OperatorAddress string
	// GovernanceAddress may change the performance config and trigger an emergency exit.
	GovernanceAddress string
	// ForwarderAddress receives the forwarded share of rewards.
	ForwarderAddress string
	// InsuranceAddress receives the insurance share of the performance fee.
	InsuranceAddress string
	// PerformanceReceiver receives the rest of the performance fee.
	PerformanceReceiver string
)

// loadRoleConfig loads collaborator addresses from environment variables.
// This function is called by LoadConfig() in General.go.
func loadRoleConfig() error {
	log.Info().Msg("Loading role configuration from environment variables...")

	targets := []struct {
		key string
		dst *string
	}{
		{"SPLITTER_ADDRESS", &SplitterAddress},
		{"AGGREGATOR_ADDRESS", &AggregatorAddress},
		{"OPERATOR_ADDRESS", &OperatorAddress},
		{"GOVERNANCE_ADDRESS", &GovernanceAddress},
		{"FORWARDER_ADDRESS", &ForwarderAddress},
		{"INSURANCE_ADDRESS", &InsuranceAddress},
		{"PERFORMANCE_RECEIVER", &PerformanceReceiver},
	}
	for _, t := range targets {
		v, err := getEnv(t.key)
		if err != nil {
			return err
		}
		*t.dst = v
	}

	log.Debug().
		Str("Splitter", SplitterAddress).
		Str("Aggregator", AggregatorAddress).
		Str("Operator", OperatorAddress).
		Str("Governance", GovernanceAddress).
		Msg("Role configuration loaded successfully.")

	return nil
}
