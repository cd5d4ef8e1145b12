package recorder

import (
	"time"

	"CryptoIngest/internal/model"
)

// RunRecord is one row of run history as read back from storage.
type RunRecord struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           model.RunStatus
	Window           int
	Attempted        int
	Succeeded        int
	Failed           int
	Warnings         int
	RawRecords       int
	ProcessedRecords int
	Error            string
}

// Recorder persists run history for later diagnosis.
type Recorder interface {
	RecordRun(summary *model.RunSummary) error
	LastRuns(n int) ([]RunRecord, error)
	Close() error
}
