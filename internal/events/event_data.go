package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PricesUpdatedData contains data for PricesUpdated events
type PricesUpdatedData struct {
	Priced     int     `json:"priced"`
	Total      int     `json:"total"`
	TotalValue float64 `json:"total_value"`
}

// EventType returns the event type for PricesUpdatedData
func (d *PricesUpdatedData) EventType() EventType {
	return PricesUpdated
}

// ConnectionChangedData contains data for ConnectionChanged events
type ConnectionChangedData struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

// EventType returns the event type for ConnectionChangedData
func (d *ConnectionChangedData) EventType() EventType {
	return ConnectionChanged
}

// RebalanceEvaluatedData contains data for RebalanceEvaluated events
type RebalanceEvaluatedData struct {
	NeedsRebalance bool    `json:"needs_rebalance"`
	Deviation      float64 `json:"deviation"`
	Threshold      float64 `json:"threshold"`
	Actions        int     `json:"actions"`
}

// EventType returns the event type for RebalanceEvaluatedData
func (d *RebalanceEvaluatedData) EventType() EventType {
	return RebalanceEvaluated
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	BatchID  string  `json:"batch_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
	USDValue float64 `json:"usd_value"`
	Status   string  `json:"status"`
	TxHash   string  `json:"tx_hash,omitempty"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// BatchCompletedData contains data for BatchCompleted events
type BatchCompletedData struct {
	BatchID    string  `json:"batch_id"`
	Venue      string  `json:"venue"`
	Actions    int     `json:"actions"`
	TotalValue float64 `json:"total_value"`
	Notified   bool    `json:"notified"`
}

// EventType returns the event type for BatchCompletedData
func (d *BatchCompletedData) EventType() EventType {
	return BatchCompleted
}

// BatchFailedData contains data for BatchFailed events
type BatchFailedData struct {
	BatchID     string `json:"batch_id"`
	Symbol      string `json:"symbol"`
	ActionIndex int    `json:"action_index"`
	Error       string `json:"error"`
}

// EventType returns the event type for BatchFailedData
func (d *BatchFailedData) EventType() EventType {
	return BatchFailed
}

// ManualSignalSentData contains data for ManualSignalSent events
type ManualSignalSentData struct {
	Deviation float64 `json:"deviation"`
	Actions   int     `json:"actions"`
	Delivered bool    `json:"delivered"`
}

// EventType returns the event type for ManualSignalSentData
func (d *ManualSignalSentData) EventType() EventType {
	return ManualSignalSent
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Keys []string `json:"keys"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// AllocationTargetsSavedData contains data for AllocationTargetsSaved events
type AllocationTargetsSavedData struct {
	Count int `json:"count"`
}

// EventType returns the event type for AllocationTargetsSavedData
func (d *AllocationTargetsSavedData) EventType() EventType {
	return AllocationTargetsSaved
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
