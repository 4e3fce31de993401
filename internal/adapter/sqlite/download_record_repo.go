package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

const recordColumns = `id, filename, url, total_bytes, received_bytes, path, state, start_time, end_time, cancelled`

// SaveRecord inserts or replaces the record with the same ID
func (s *Store) SaveRecord(rec *domain.DownloadRecord) error {
	query := `
		INSERT INTO download_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			url = excluded.url,
			total_bytes = excluded.total_bytes,
			received_bytes = excluded.received_bytes,
			path = excluded.path,
			state = excluded.state,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			cancelled = excluded.cancelled
	`

	var total sql.NullInt64
	if rec.HasKnownTotal() {
		total = sql.NullInt64{Int64: rec.TotalBytes, Valid: true}
	}

	var end sql.NullInt64
	if rec.EndTime != nil {
		end = sql.NullInt64{Int64: toUnixNano(*rec.EndTime), Valid: true}
	}

	_, err := s.db.Exec(query,
		rec.ID, rec.Filename, rec.URL, total, rec.ReceivedBytes, rec.Path,
		string(rec.State), toUnixNano(rec.StartTime), end, rec.Cancelled)
	if err != nil {
		return fmt.Errorf("failed to save download record %s: %w", rec.ID, err)
	}
	return nil
}

// GetRecord retrieves a record by ID
func (s *Store) GetRecord(id string) (*domain.DownloadRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM download_records WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListRecords returns all records, newest start time first
func (s *Store) ListRecords() ([]*domain.DownloadRecord, error) {
	return s.queryRecords(`SELECT ` + recordColumns + ` FROM download_records ORDER BY start_time DESC, id DESC`)
}

// ListActiveRecords returns records still in a non-terminal state
func (s *Store) ListActiveRecords() ([]*domain.DownloadRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM download_records WHERE state IN (?, ?) ORDER BY start_time DESC, id DESC`,
		string(domain.StateRegistered), string(domain.StateInProgress))
}

// DeleteRecord removes a record by ID
func (s *Store) DeleteRecord(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM download_records WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearRecords removes every record
func (s *Store) ClearRecords() (int, error) {
	result, err := s.db.Exec(`DELETE FROM download_records`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// MarkActiveInterrupted moves every non-terminal record to Interrupted
func (s *Store) MarkActiveInterrupted(endTime time.Time) (int, error) {
	query := `
		UPDATE download_records
		SET state = ?, end_time = ?, cancelled = FALSE
		WHERE state IN (?, ?)
	`
	result, err := s.db.Exec(query,
		string(domain.StateInterrupted), toUnixNano(endTime),
		string(domain.StateRegistered), string(domain.StateInProgress))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) queryRecords(query string, args ...any) ([]*domain.DownloadRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DownloadRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.DownloadRecord, error) {
	rec := &domain.DownloadRecord{}
	var total, end sql.NullInt64
	var state string
	var start int64

	err := row.Scan(
		&rec.ID, &rec.Filename, &rec.URL, &total, &rec.ReceivedBytes, &rec.Path,
		&state, &start, &end, &rec.Cancelled,
	)
	if err != nil {
		return nil, err
	}

	rec.State = domain.DownloadState(state)
	rec.StartTime = fromUnixNano(start)
	rec.TotalBytes = domain.UnknownSize
	if total.Valid {
		rec.TotalBytes = total.Int64
	}
	if end.Valid {
		t := fromUnixNano(end.Int64)
		rec.EndTime = &t
	}

	// Rows with a state this build does not know are read back as interrupted
	if !rec.State.IsValid() {
		rec.State = domain.StateInterrupted
		if rec.EndTime == nil {
			t := rec.StartTime
			rec.EndTime = &t
		}
	}
	return rec, nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
