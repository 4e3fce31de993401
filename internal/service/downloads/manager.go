package downloads

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/event"
	"github.com/lordseriouspig/nova-shell/internal/port"
)

// IDGenerator issues download identifiers
type IDGenerator interface {
	NewDownloadID() string
}

// liveTransfer is a registered, not yet finished transfer. Owned by the loop.
type liveTransfer struct {
	handle       port.TransferHandle
	record       *domain.DownloadRecord
	cancelIssued bool
}

type taggedSignal struct {
	id     string
	signal port.TransferSignal
}

// Manager tracks transfers and their persisted history.
// The live registry and every store write are touched only by the loop
// goroutine started by Start; public methods submit work to it.
type Manager struct {
	dir     port.DownloadDirectory
	records port.DownloadRecordRepository
	opener  port.FolderOpener
	ids     IDGenerator
	events  event.EventDispatcher
	logger  *zap.Logger
	now     func() time.Time

	cmds    chan func()
	signals chan taggedSignal
	done    chan struct{}

	live map[string]*liveTransfer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a new Manager
func New(
	dir port.DownloadDirectory,
	records port.DownloadRecordRepository,
	opener port.FolderOpener,
	ids IDGenerator,
	events event.EventDispatcher,
	logger *zap.Logger,
) *Manager {
	if events == nil {
		events = event.NewNullDispatcher()
	}
	return &Manager{
		dir:     dir,
		records: records,
		opener:  opener,
		ids:     ids,
		events:  events,
		logger:  logger,
		now:     time.Now,
		cmds:    make(chan func()),
		signals: make(chan taggedSignal),
		done:    make(chan struct{}),
		live:    make(map[string]*liveTransfer),
	}
}

// Start runs the manager loop until ctx is cancelled or Stop is called
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("download manager already running")
	}
	select {
	case <-m.done:
		m.mu.Unlock()
		return domain.ErrManagerStopped
	default:
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.logger.Info("download manager started", zap.String("dir", m.dir.Root()))
	m.loop(ctx)
	m.logger.Info("download manager stopped", zap.Int("live_transfers", len(m.live)))
	return nil
}

// Stop stops the manager loop. Live transfers are not awaited.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-m.cmds:
			fn()
		case ts := <-m.signals:
			m.handleSignal(ts)
		}
	}
}

// exec runs fn on the loop and waits for it to finish
func (m *Manager) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case m.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return domain.ErrManagerStopped
	}

	<-finished
	return nil
}

// Track registers a newly started transfer: it picks a free destination in
// the download directory, hands it to the transfer, and records it.
func (m *Manager) Track(ctx context.Context, handle port.TransferHandle) (*domain.DownloadRecord, error) {
	if handle == nil {
		return nil, domain.ErrNilTransfer
	}

	var rec *domain.DownloadRecord
	var err error
	if execErr := m.exec(ctx, func() { rec, err = m.track(handle) }); execErr != nil {
		return nil, execErr
	}
	return rec, err
}

func (m *Manager) track(handle port.TransferHandle) (*domain.DownloadRecord, error) {
	dest, err := m.dir.Allocate(handle.SuggestedFilename(), m.heldByLiveTransfer)
	if err != nil {
		handle.Cancel()
		return nil, fmt.Errorf("failed to allocate destination: %w", err)
	}
	if err := handle.SetSavePath(dest); err != nil {
		handle.Cancel()
		return nil, fmt.Errorf("failed to set save path: %w", err)
	}

	id := m.ids.NewDownloadID()
	rec := domain.NewDownloadRecord(id, filepath.Base(dest), handle.SourceURL(), dest, handle.TotalBytes(), m.now())
	m.live[id] = &liveTransfer{handle: handle, record: rec}
	m.persist(rec)

	m.events.Dispatch(event.NewDownloadStarted(rec))
	go m.forward(id, handle)

	return rec.Clone(), nil
}

// heldByLiveTransfer reports whether a live transfer already writes to path.
// Called from the loop only.
func (m *Manager) heldByLiveTransfer(path string) bool {
	for _, lt := range m.live {
		if lt.record.Path == path {
			return true
		}
	}
	return false
}

// forward relays a transfer's signals into the loop tagged with its id.
// A channel closed without a terminal signal counts as an interruption.
func (m *Manager) forward(id string, handle port.TransferHandle) {
	for sig := range handle.Signals() {
		if !m.deliver(taggedSignal{id: id, signal: sig}) {
			return
		}
		if sig.Kind == port.SignalDone {
			return
		}
	}
	m.deliver(taggedSignal{id: id, signal: port.DoneSignal(domain.StateInterrupted)})
}

func (m *Manager) deliver(ts taggedSignal) bool {
	select {
	case m.signals <- ts:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) handleSignal(ts taggedSignal) {
	lt, ok := m.live[ts.id]
	if !ok {
		return
	}

	switch ts.signal.Kind {
	case port.SignalProgress:
		m.applyProgress(ts.id, lt)
	case port.SignalDone:
		m.finish(ts.id, lt, ts.signal.Outcome)
	}
}

func (m *Manager) applyProgress(id string, lt *liveTransfer) {
	prev := lt.record.ReceivedBytes
	total := lt.handle.TotalBytes()
	m.warnShrinkingTotal(id, lt.record, total)
	if err := lt.record.ApplyProgress(lt.handle.ReceivedBytes(), total); err != nil {
		m.logger.Debug("Ignoring progress", zap.String("id", id), zap.Error(err))
		return
	}

	// Upsert: a record cleared from history comes back here
	m.persist(lt.record)
	m.events.Dispatch(event.NewDownloadProgressed(lt.record, lt.record.ReceivedBytes-prev))
}

func (m *Manager) finish(id string, lt *liveTransfer, outcome domain.DownloadState) {
	if !outcome.IsTerminal() {
		outcome = domain.StateInterrupted
	}
	if outcome == domain.StateInterrupted && lt.cancelIssued {
		outcome = domain.StateCancelled
	}

	prev := lt.record.ReceivedBytes
	received := lt.handle.ReceivedBytes()
	total := lt.handle.TotalBytes()
	m.warnShrinkingTotal(id, lt.record, total)
	if err := lt.record.ApplyProgress(received, total); err != nil {
		m.logger.Debug("Ignoring final progress", zap.String("id", id), zap.Error(err))
	}
	if err := lt.record.Finish(outcome, received, m.now()); err != nil {
		m.logger.Warn("Failed to finish record", zap.String("id", id), zap.Error(err))
	}
	delete(m.live, id)

	m.persist(lt.record)
	if delta := lt.record.ReceivedBytes - prev; delta > 0 {
		m.events.Dispatch(event.NewDownloadProgressed(lt.record, delta))
	}
	m.events.Dispatch(event.NewDownloadFinished(lt.record))
}

func (m *Manager) warnShrinkingTotal(id string, rec *domain.DownloadRecord, total int64) {
	if rec.ShrinksTotal(total) {
		m.logger.Warn("Transfer reported a total below received bytes",
			zap.String("id", id),
			zap.Int64("total_bytes", total),
			zap.Int64("received_bytes", rec.ReceivedBytes))
	}
}

// persist writes rec to the store. Failures are logged; the next event retries.
func (m *Manager) persist(rec *domain.DownloadRecord) {
	if err := m.records.SaveRecord(rec); err != nil {
		m.logger.Warn("Failed to persist download record",
			zap.String("id", rec.ID),
			zap.String("state", string(rec.State)),
			zap.Error(err))
	}
}

// Cancel requests cancellation of a live transfer. It returns false, with no
// side effects, if id is unknown or already finished. The final state arrives
// later through the transfer's terminal signal.
func (m *Manager) Cancel(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := m.exec(ctx, func() {
		lt, found := m.live[id]
		if !found || !lt.record.IsActive() || lt.handle.IsFinished() {
			return
		}
		lt.handle.Cancel()
		lt.cancelIssued = true
		ok = true
	})
	return ok, err
}

// List returns the download history newest first. Live transfers are
// reported with their in-memory progress.
func (m *Manager) List(ctx context.Context) ([]*domain.DownloadRecord, error) {
	var records []*domain.DownloadRecord
	var err error
	if execErr := m.exec(ctx, func() {
		records, err = m.records.ListRecords()
		if err != nil {
			return
		}
		for i, rec := range records {
			if lt, ok := m.live[rec.ID]; ok {
				records[i] = lt.record.Clone()
			}
		}
	}); execErr != nil {
		return nil, execErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list download records: %w", err)
	}
	if records == nil {
		records = []*domain.DownloadRecord{}
	}
	return records, nil
}

// Get returns one record, preferring the live copy
func (m *Manager) Get(ctx context.Context, id string) (*domain.DownloadRecord, error) {
	var rec *domain.DownloadRecord
	var err error
	if execErr := m.exec(ctx, func() { rec, err = m.get(id) }); execErr != nil {
		return nil, execErr
	}
	return rec, err
}

func (m *Manager) get(id string) (*domain.DownloadRecord, error) {
	if lt, ok := m.live[id]; ok {
		return lt.record.Clone(), nil
	}
	rec, err := m.records.GetRecord(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

// Clear empties the persisted history. Live transfers keep running and
// reappear on their next progress signal.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	var n int
	var err error
	if execErr := m.exec(ctx, func() { n, err = m.records.ClearRecords() }); execErr != nil {
		return 0, execErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear download records: %w", err)
	}
	m.events.Dispatch(event.NewDownloadsCleared(n))
	return n, nil
}

// Remove deletes one record from the history
func (m *Manager) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	var err error
	if execErr := m.exec(ctx, func() { removed, err = m.records.DeleteRecord(id) }); execErr != nil {
		return false, execErr
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove download record: %w", err)
	}
	if removed {
		m.events.Dispatch(event.NewDownloadRemoved(id))
	}
	return removed, nil
}

// OpenFolder reveals the directory containing the download, or the download
// directory itself when the record has no path.
func (m *Manager) OpenFolder(ctx context.Context, id string) error {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	dir := m.dir.Root()
	if rec.Path != "" {
		dir = filepath.Dir(rec.Path)
	}
	return m.opener.OpenFolder(dir)
}

// LiveCount returns the number of transfers still running
func (m *Manager) LiveCount(ctx context.Context) (int, error) {
	var n int
	err := m.exec(ctx, func() { n = len(m.live) })
	return n, err
}
