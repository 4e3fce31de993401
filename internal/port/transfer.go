package port

import "github.com/lordseriouspig/nova-shell/internal/domain"

// SignalKind distinguishes progress from completion signals
type SignalKind int

const (
	// SignalProgress reports new byte counts
	SignalProgress SignalKind = iota
	// SignalDone reports the terminal outcome; it is sent exactly once
	SignalDone
)

// TransferSignal is emitted by a TransferHandle
type TransferSignal struct {
	Kind SignalKind
	// Outcome is set for SignalDone: Completed, Cancelled or Interrupted
	Outcome domain.DownloadState
}

// ProgressSignal returns a progress signal
func ProgressSignal() TransferSignal {
	return TransferSignal{Kind: SignalProgress}
}

// DoneSignal returns a terminal signal with the given outcome
func DoneSignal(outcome domain.DownloadState) TransferSignal {
	return TransferSignal{Kind: SignalDone, Outcome: outcome}
}

// TransferHandle is a live, cancellable transfer owned by its producer.
// The download manager only observes and cancels it.
type TransferHandle interface {
	SourceURL() string
	SuggestedFilename() string

	// SetSavePath tells the transfer where to write; it must be called once
	// before any bytes are written
	SetSavePath(path string) error

	ReceivedBytes() int64
	// TotalBytes returns domain.UnknownSize when the size is not known
	TotalBytes() int64

	// Cancel requests cancellation; the handle later signals the outcome
	Cancel()
	IsFinished() bool

	// Signals delivers progress and exactly one SignalDone, then closes
	Signals() <-chan TransferSignal
}
