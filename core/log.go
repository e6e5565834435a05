package core

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Package-level loggers, one per component, each with its own SetXLogger
// setter. Each defaults to discarding output so library use without
// explicit configuration stays silent.
var (
	aggregatorLog = newDiscardLogger()
	walletLog     = newDiscardLogger()
	validatorLog  = newDiscardLogger()
	settlementLog = newDiscardLogger()
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetAggregatorLogger redirects the aggregator's log output.
func SetAggregatorLogger(l *logrus.Logger) {
	if l != nil {
		aggregatorLog = l
	}
}

// SetWalletLogger redirects the wallet's log output.
func SetWalletLogger(l *logrus.Logger) {
	if l != nil {
		walletLog = l
	}
}

// SetValidatorLogger redirects the balance-proof validator's log output.
func SetValidatorLogger(l *logrus.Logger) {
	if l != nil {
		validatorLog = l
	}
}

// SetSettlementLogger redirects the settlement store's log output.
func SetSettlementLogger(l *logrus.Logger) {
	if l != nil {
		settlementLog = l
	}
}
