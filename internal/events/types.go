// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PricesUpdated          EventType = "PRICES_UPDATED"
	ConnectionChanged      EventType = "CONNECTION_CHANGED"
	RebalanceEvaluated     EventType = "REBALANCE_EVALUATED"
	TradeExecuted          EventType = "TRADE_EXECUTED"
	BatchCompleted         EventType = "BATCH_COMPLETED"
	BatchFailed            EventType = "BATCH_FAILED"
	ManualSignalSent       EventType = "MANUAL_SIGNAL_SENT"
	SettingsChanged        EventType = "SETTINGS_CHANGED"
	AllocationTargetsSaved EventType = "ALLOCATION_TARGETS_SAVED"
	BackupCompleted        EventType = "BACKUP_COMPLETED"
	ErrorOccurred          EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, used by stream subscribers
var AllEventTypes = []EventType{
	PricesUpdated,
	ConnectionChanged,
	RebalanceEvaluated,
	TradeExecuted,
	BatchCompleted,
	BatchFailed,
	ManualSignalSent,
	SettingsChanged,
	AllocationTargetsSaved,
	BackupCompleted,
	ErrorOccurred,
}

// Event represents a system event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
	Module    string    `json:"module"`
}
