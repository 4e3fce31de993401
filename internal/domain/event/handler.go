package event

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case DownloadStarted:
		h.logger.Info("download started",
			zap.String("id", e.ID),
			zap.String("filename", e.Filename),
			zap.String("url", e.URL),
			zap.String("path", e.Path),
		)
	case DownloadProgressed:
		h.logger.Debug("download progress",
			zap.String("id", e.ID),
			zap.String("received", humanize.Bytes(uint64(e.ReceivedBytes))),
			zap.Int64("total_bytes", e.TotalBytes),
			zap.String("percent", percent(e.Progress)),
		)
	case DownloadFinished:
		h.logger.Info("download finished",
			zap.String("id", e.ID),
			zap.String("filename", e.Filename),
			zap.String("state", string(e.State)),
			zap.String("size", humanize.Bytes(uint64(e.ReceivedBytes))),
			zap.Duration("duration", e.Duration),
		)
	case DownloadRemoved:
		h.logger.Debug("download removed", zap.String("id", e.ID))
	case DownloadsCleared:
		h.logger.Info("downloads cleared", zap.Int("count", e.Count))
	case ResourceResolved:
		h.logger.Debug("resource resolved",
			zap.String("locator", e.Locator),
			zap.Int("status", e.Status),
			zap.String("outcome", e.Outcome),
			zap.String("size", humanize.Bytes(uint64(e.Size))),
			zap.Duration("duration", e.Duration),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{AllEvents}
}

// MetricsRecorder receives counters derived from events
type MetricsRecorder interface {
	DownloadStarted()
	DownloadBytes(n int64)
	DownloadFinished(state string)
	ResourceResolved(outcome string, duration time.Duration)
}

// MetricsHandler feeds events into a MetricsRecorder
type MetricsHandler struct {
	recorder MetricsRecorder
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(recorder MetricsRecorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case DownloadStarted:
		h.recorder.DownloadStarted()
	case DownloadProgressed:
		if e.Delta > 0 {
			h.recorder.DownloadBytes(e.Delta)
		}
	case DownloadFinished:
		h.recorder.DownloadFinished(string(e.State))
	case ResourceResolved:
		h.recorder.ResourceResolved(e.Outcome, e.Duration)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameDownloadStarted,
		NameDownloadProgress,
		NameDownloadFinished,
		NameResourceResolved,
	}
}

func percent(fraction float64) string {
	if fraction < 0 {
		return "unknown"
	}
	return humanize.FtoaWithDigits(fraction*100, 1) + "%"
}
