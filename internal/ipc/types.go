package ipc

import "time"

// StopRequest stops the daemon transfer loop.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/transfer status information.
type StatusResponse struct {
	Running            bool      `json:"running"`
	PID                int       `json:"pid"`
	LockPath           string    `json:"lock_path"`
	StateDBPath        string    `json:"state_db_path"`
	Heartbeat          time.Time `json:"heartbeat"`
	Suspended          bool      `json:"suspended"`
	SuspendReason      string    `json:"suspend_reason"`
	TransferInProgress bool      `json:"transfer_in_progress"`
	TransferSource     string    `json:"transfer_source"`
	TransferUser       string    `json:"transfer_user"`
	TransferSize       int64     `json:"transfer_size"`
	BytesCompleted     int64     `json:"bytes_completed"`
	PercentComplete    float64   `json:"percent_complete"`
	CleanShutdown      bool      `json:"clean_shutdown"`
	StorageSummary     string    `json:"storage_summary"`
}

// GraceReportRequest fetches expired grace-area batches.
type GraceReportRequest struct{}

// GraceBatch is one expired grace sub-batch.
type GraceBatch struct {
	User    string `json:"user"`
	Stamp   string `json:"stamp"`
	AgeDays int    `json:"age_days"`
	Bytes   int64  `json:"bytes"`
}

// GraceReportResponse lists expired batches, oldest users first.
type GraceReportResponse struct {
	Batches []GraceBatch `json:"batches"`
}

// HistoryRequest fetches recent finalized transfers.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryEntry is one finalized transfer.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	User        string    `json:"user"`
	Batch       string    `json:"batch"`
	Bytes       int64     `json:"bytes"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// HistoryResponse contains transfer history entries, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// LogTailRequest reads daemon log lines. A negative Offset requests the
// last Limit lines; WaitMS bounds the follow-mode wait for new lines.
type LogTailRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit"`
	Follow bool  `json:"follow"`
	WaitMS int64 `json:"wait_ms"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
