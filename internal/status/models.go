package status

import "time"

// Status is the durable daemon state surviving restarts. External status
// tooling consumes these fields; treat renames as breaking.
type Status struct {
	CurrentTransferSource   string
	TransferTargetUser      string
	TransferInProgress      bool
	CurrentTransferSize     int64
	BytesCompleted          int64
	BytesCurrentFile        int64
	PercentComplete         float64
	ServiceSuspended        bool
	SuspendReason           string
	LastHeartbeat           time.Time
	LastStorageNotification time.Time
	LastAdminNotification   time.Time
	LastGraceNotification   time.Time
	CleanShutdown           bool
}

// HistoryEntry records one finalized transfer.
type HistoryEntry struct {
	ID          int64
	User        string
	Batch       string
	Bytes       int64
	StartedAt   time.Time
	CompletedAt time.Time
}
