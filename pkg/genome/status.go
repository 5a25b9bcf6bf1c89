package genome

import (
	"strings"
)

// StrategyStatus is the lifecycle state of a strategy in the evolution pipeline
type StrategyStatus string

const (
	StatusGenerated        StrategyStatus = "generated"
	StatusBacktesting      StrategyStatus = "backtesting"
	StatusBacktestComplete StrategyStatus = "backtest_complete"
	StatusLiveTesting      StrategyStatus = "live_testing"
	StatusActive           StrategyStatus = "active"
	StatusArchived         StrategyStatus = "archived"
	StatusFailed           StrategyStatus = "failed"
)

// forward order of the non-terminal statuses
var statusRank = map[StrategyStatus]int{
	StatusGenerated:        0,
	StatusBacktesting:      1,
	StatusBacktestComplete: 2,
	StatusLiveTesting:      3,
	StatusActive:           4,
}

// IsValid checks if the status is a known value
func (s StrategyStatus) IsValid() bool {
	switch s {
	case StatusGenerated, StatusBacktesting, StatusBacktestComplete, StatusLiveTesting,
		StatusActive, StatusArchived, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true once no further transition is possible
func (s StrategyStatus) IsTerminal() bool {
	return s == StatusArchived || s == StatusFailed
}

func (s StrategyStatus) String() string {
	return string(s)
}

// StrategyStatusFromString converts a string to StrategyStatus, defaulting to generated
func StrategyStatusFromString(s string) StrategyStatus {
	status := StrategyStatus(strings.ToLower(s))
	if status.IsValid() {
		return status
	}
	return StatusGenerated
}

// CanTransition reports whether from -> to respects the forward-only lifecycle.
// Any non-terminal status may fall to FAILED or ARCHIVED.
func CanTransition(from, to StrategyStatus) bool {
	if !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to.IsTerminal() {
		return true
	}
	return statusRank[to] > statusRank[from]
}
