package event

import (
	"time"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

// Event names
const (
	NameDownloadStarted  = "download.started"
	NameDownloadProgress = "download.progress"
	NameDownloadFinished = "download.finished"
	NameDownloadRemoved  = "download.removed"
	NameDownloadsCleared = "downloads.cleared"
	NameResourceResolved = "resource.resolved"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// DownloadStarted is raised when a transfer is registered with the manager
type DownloadStarted struct {
	BaseEvent
	ID       string
	Filename string
	URL      string
	Path     string
}

// EventName returns the event name
func (e DownloadStarted) EventName() string {
	return NameDownloadStarted
}

// NewDownloadStarted creates a new DownloadStarted event
func NewDownloadStarted(rec *domain.DownloadRecord) DownloadStarted {
	return DownloadStarted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		ID:        rec.ID,
		Filename:  rec.Filename,
		URL:       rec.URL,
		Path:      rec.Path,
	}
}

// DownloadProgressed is raised when a transfer reports new byte counts
type DownloadProgressed struct {
	BaseEvent
	ID            string
	ReceivedBytes int64
	TotalBytes    int64
	// Delta is the number of bytes received since the previous observation
	Delta int64
	// Progress is the completed fraction, or -1 while the total is unknown
	Progress float64
}

// EventName returns the event name
func (e DownloadProgressed) EventName() string {
	return NameDownloadProgress
}

// NewDownloadProgressed creates a new DownloadProgressed event from the
// record's current counts
func NewDownloadProgressed(rec *domain.DownloadRecord, delta int64) DownloadProgressed {
	return DownloadProgressed{
		BaseEvent:     BaseEvent{Timestamp: time.Now()},
		ID:            rec.ID,
		ReceivedBytes: rec.ReceivedBytes,
		TotalBytes:    rec.TotalBytes,
		Delta:         delta,
		Progress:      rec.Progress(),
	}
}

// DownloadFinished is raised when a transfer reaches a terminal state
type DownloadFinished struct {
	BaseEvent
	ID            string
	Filename      string
	Path          string
	State         domain.DownloadState
	ReceivedBytes int64
	Duration      time.Duration
}

// EventName returns the event name
func (e DownloadFinished) EventName() string {
	return NameDownloadFinished
}

// NewDownloadFinished creates a new DownloadFinished event
func NewDownloadFinished(rec *domain.DownloadRecord) DownloadFinished {
	var duration time.Duration
	if rec.EndTime != nil {
		duration = rec.EndTime.Sub(rec.StartTime)
	}
	return DownloadFinished{
		BaseEvent:     BaseEvent{Timestamp: time.Now()},
		ID:            rec.ID,
		Filename:      rec.Filename,
		Path:          rec.Path,
		State:         rec.State,
		ReceivedBytes: rec.ReceivedBytes,
		Duration:      duration,
	}
}

// DownloadRemoved is raised when a single record is removed from the list
type DownloadRemoved struct {
	BaseEvent
	ID string
}

// EventName returns the event name
func (e DownloadRemoved) EventName() string {
	return NameDownloadRemoved
}

// NewDownloadRemoved creates a new DownloadRemoved event
func NewDownloadRemoved(id string) DownloadRemoved {
	return DownloadRemoved{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		ID:        id,
	}
}

// DownloadsCleared is raised when the persisted list is emptied
type DownloadsCleared struct {
	BaseEvent
	Count int
}

// EventName returns the event name
func (e DownloadsCleared) EventName() string {
	return NameDownloadsCleared
}

// NewDownloadsCleared creates a new DownloadsCleared event
func NewDownloadsCleared(count int) DownloadsCleared {
	return DownloadsCleared{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Count:     count,
	}
}

// ResourceResolved is raised once per virtual resource request
type ResourceResolved struct {
	BaseEvent
	Locator  string
	Status   int
	Outcome  string
	Size     int
	Duration time.Duration
}

// EventName returns the event name
func (e ResourceResolved) EventName() string {
	return NameResourceResolved
}

// NewResourceResolved creates a new ResourceResolved event
func NewResourceResolved(locator string, status int, outcome string, size int, duration time.Duration) ResourceResolved {
	return ResourceResolved{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Locator:   locator,
		Status:    status,
		Outcome:   outcome,
		Size:      size,
		Duration:  duration,
	}
}
