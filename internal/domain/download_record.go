package domain

import "time"

// DownloadState is the lifecycle state of a transfer record
type DownloadState string

// Download states
const (
	StateRegistered  DownloadState = "registered"
	StateInProgress  DownloadState = "in_progress"
	StateCompleted   DownloadState = "completed"
	StateCancelled   DownloadState = "cancelled"
	StateInterrupted DownloadState = "interrupted"
)

// UnknownSize marks a total byte count the transfer has not reported
const UnknownSize int64 = -1

// IsTerminal returns true for states a record never leaves
func (s DownloadState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateInterrupted:
		return true
	}
	return false
}

// IsValid returns true if s is one of the known states
func (s DownloadState) IsValid() bool {
	switch s {
	case StateRegistered, StateInProgress, StateCompleted, StateCancelled, StateInterrupted:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// monotonic: Registered -> InProgress -> terminal.
func (s DownloadState) CanTransitionTo(next DownloadState) bool {
	switch s {
	case StateRegistered:
		return next == StateInProgress || next.IsTerminal()
	case StateInProgress:
		return next == StateInProgress || next.IsTerminal()
	default:
		return false
	}
}

// DownloadRecord is the persisted metadata and last-known progress of a transfer
type DownloadRecord struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	URL           string        `json:"url"`
	TotalBytes    int64         `json:"totalBytes"`
	ReceivedBytes int64         `json:"receivedBytes"`
	Path          string        `json:"path"`
	State         DownloadState `json:"state"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       *time.Time    `json:"endTime"`
	Cancelled     bool          `json:"cancelled"`
}

// NewDownloadRecord creates a zero-progress record in the Registered state
func NewDownloadRecord(id, filename, url, path string, totalBytes int64, startTime time.Time) *DownloadRecord {
	if totalBytes < 0 {
		totalBytes = UnknownSize
	}
	return &DownloadRecord{
		ID:         id,
		Filename:   filename,
		URL:        url,
		TotalBytes: totalBytes,
		Path:       path,
		State:      StateRegistered,
		StartTime:  startTime,
	}
}

// IsActive returns true while the record has not reached a terminal state
func (r *DownloadRecord) IsActive() bool {
	return !r.State.IsTerminal()
}

// ShrinksTotal reports whether totalBytes, if applied, would fall below the
// bytes already recorded
func (r *DownloadRecord) ShrinksTotal(totalBytes int64) bool {
	return totalBytes >= 0 && totalBytes < r.ReceivedBytes
}

// HasKnownTotal returns true if the total size has been reported
func (r *DownloadRecord) HasKnownTotal() bool {
	return r.TotalBytes >= 0
}

// ApplyProgress folds a progress observation into the record.
// ReceivedBytes never decreases and never exceeds a known total. A reported
// total below the bytes already recorded is raised to that figure.
func (r *DownloadRecord) ApplyProgress(receivedBytes, totalBytes int64) error {
	if !r.State.CanTransitionTo(StateInProgress) {
		return ErrInvalidStateTransition
	}

	if totalBytes >= 0 {
		r.TotalBytes = max(totalBytes, r.ReceivedBytes)
	}
	if receivedBytes > r.ReceivedBytes {
		r.ReceivedBytes = receivedBytes
	}
	r.clampReceived()
	r.State = StateInProgress
	return nil
}

// Finish moves the record into a terminal state
func (r *DownloadRecord) Finish(state DownloadState, receivedBytes int64, endTime time.Time) error {
	if !state.IsTerminal() || !r.State.CanTransitionTo(state) {
		return ErrInvalidStateTransition
	}

	if receivedBytes > r.ReceivedBytes {
		r.ReceivedBytes = receivedBytes
	}
	if state == StateCompleted && !r.HasKnownTotal() {
		r.TotalBytes = r.ReceivedBytes
	}
	r.clampReceived()

	r.State = state
	r.Cancelled = state == StateCancelled
	end := endTime
	r.EndTime = &end
	return nil
}

// Progress returns the completed fraction in [0, 1], or -1 if the total is unknown
func (r *DownloadRecord) Progress() float64 {
	if !r.HasKnownTotal() {
		return -1
	}
	if r.TotalBytes == 0 {
		if r.State == StateCompleted {
			return 1
		}
		return 0
	}
	return float64(r.ReceivedBytes) / float64(r.TotalBytes)
}

// Clone returns a deep copy safe to hand across goroutines
func (r *DownloadRecord) Clone() *DownloadRecord {
	c := *r
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	return &c
}

func (r *DownloadRecord) clampReceived() {
	if r.ReceivedBytes < 0 {
		r.ReceivedBytes = 0
	}
	if r.HasKnownTotal() && r.ReceivedBytes > r.TotalBytes {
		r.ReceivedBytes = r.TotalBytes
	}
}
