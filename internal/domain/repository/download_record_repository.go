package repository

import (
	"time"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

// DownloadRecordRepository defines the interface for persisted download history
type DownloadRecordRepository interface {
	// SaveRecord inserts or replaces the record with the same ID
	SaveRecord(rec *domain.DownloadRecord) error

	// GetRecord retrieves a record by ID
	// Returns nil, nil if not found
	GetRecord(id string) (*domain.DownloadRecord, error)

	// ListRecords returns all records, newest start time first
	ListRecords() ([]*domain.DownloadRecord, error)

	// DeleteRecord removes a record by ID
	// Returns false if no record had that ID
	DeleteRecord(id string) (bool, error)

	// ClearRecords removes every record and returns how many were removed
	ClearRecords() (int, error)

	// ListActiveRecords returns records still in a non-terminal state
	ListActiveRecords() ([]*domain.DownloadRecord, error)

	// MarkActiveInterrupted moves every non-terminal record to Interrupted
	// with the given end time. Used at startup when no handle can still be live.
	MarkActiveInterrupted(endTime time.Time) (int, error)
}
