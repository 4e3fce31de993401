package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/adapter/filesystem"
	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/port"
	"github.com/lordseriouspig/nova-shell/internal/util/ratelimiter"
)

const signalBuffer = 16

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrSavePathSet is returned when SetSavePath is called twice
	ErrSavePathSet = errors.New("save path already set")
)

// Config configures the HTTP transfer client
type Config struct {
	RetryMax         int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
	UserAgent        string
	ProgressInterval time.Duration
	BufferSize       int
}

// Client starts HTTP transfers
type Client struct {
	http   *retryablehttp.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new transfer client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256 * 1024
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.Logger = &leveledLogger{logger: logger.Sugar()}

	return &Client{
		http:   rc,
		cfg:    cfg,
		logger: logger,
	}
}

// NewTransfer prepares a GET of rawURL. Nothing is fetched until SetSavePath.
func (c *Client) NewTransfer(rawURL string) (*Transfer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url: missing host")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transfer{
		client:   c,
		url:      u.String(),
		name:     path.Base(u.Path),
		ctx:      ctx,
		cancel:   cancel,
		signals:  make(chan port.TransferSignal, signalBuffer),
		progress: ratelimiter.New(c.cfg.ProgressInterval),
		logger:   c.logger.With(zap.String("url", u.String())),
	}
	t.total.Store(domain.UnknownSize)
	return t, nil
}

// Transfer is a single HTTP download implementing port.TransferHandle
type Transfer struct {
	client *Client
	url    string
	name   string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	savePath string

	received atomic.Int64
	total    atomic.Int64
	finished atomic.Bool

	signals  chan port.TransferSignal
	progress *ratelimiter.Limiter
	logger   *zap.Logger
}

// Ensure Transfer implements port.TransferHandle
var _ port.TransferHandle = (*Transfer)(nil)

// SourceURL returns the URL being fetched
func (t *Transfer) SourceURL() string {
	return t.url
}

// SuggestedFilename returns the last path element of the URL
func (t *Transfer) SuggestedFilename() string {
	return t.name
}

// SetSavePath sets the destination and starts the transfer
func (t *Transfer) SetSavePath(dest string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.savePath != "" {
		return ErrSavePathSet
	}
	t.savePath = dest

	go t.run(dest)
	return nil
}

// ReceivedBytes returns the bytes written so far
func (t *Transfer) ReceivedBytes() int64 {
	return t.received.Load()
}

// TotalBytes returns the expected size, or domain.UnknownSize
func (t *Transfer) TotalBytes() int64 {
	return t.total.Load()
}

// Cancel aborts the request; the outcome is reported on Signals
func (t *Transfer) Cancel() {
	t.cancel()
}

// IsFinished returns true once the terminal signal has been produced
func (t *Transfer) IsFinished() bool {
	return t.finished.Load()
}

// Signals returns the progress and completion channel
func (t *Transfer) Signals() <-chan port.TransferSignal {
	return t.signals
}

func (t *Transfer) run(dest string) {
	defer close(t.signals)
	defer t.cancel()

	outcome := t.download(dest)
	t.finished.Store(true)
	t.signals <- port.DoneSignal(outcome)
}

func (t *Transfer) download(dest string) domain.DownloadState {
	req, err := retryablehttp.NewRequestWithContext(t.ctx, http.MethodGet, t.url, nil)
	if err != nil {
		t.logger.Warn("Failed to build request", zap.Error(err))
		return domain.StateInterrupted
	}
	if t.client.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.client.cfg.UserAgent)
	}

	resp, err := t.client.http.Do(req)
	if err != nil {
		return t.failure("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("Unexpected response status", zap.Int("status", resp.StatusCode))
		return domain.StateInterrupted
	}
	if resp.ContentLength >= 0 {
		t.total.Store(resp.ContentLength)
	}

	part := filesystem.PartPath(dest)
	f, err := os.Create(part)
	if err != nil {
		t.logger.Error("Failed to create partial file", zap.String("path", part), zap.Error(err))
		return domain.StateInterrupted
	}

	reader := &progressReader{reader: resp.Body, transfer: t}
	buf := make([]byte, t.client.cfg.BufferSize)
	_, copyErr := io.CopyBuffer(f, reader, buf)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(part)
		return t.failure("write failed", copyErr)
	}

	if total := t.total.Load(); total >= 0 && t.received.Load() != total {
		os.Remove(part)
		t.logger.Warn("Body shorter than Content-Length",
			zap.Int64("received", t.received.Load()),
			zap.Int64("total", total))
		return domain.StateInterrupted
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		t.logger.Error("Failed to rename partial file", zap.String("path", dest), zap.Error(err))
		return domain.StateInterrupted
	}

	t.emitProgress()
	return domain.StateCompleted
}

func (t *Transfer) failure(msg string, err error) domain.DownloadState {
	if t.ctx.Err() != nil {
		return domain.StateCancelled
	}
	t.logger.Warn("Transfer "+msg, zap.Error(err))
	return domain.StateInterrupted
}

// emitProgress never blocks; a full buffer drops the signal since the
// receiver reads current counts from the handle anyway
func (t *Transfer) emitProgress() {
	select {
	case t.signals <- port.ProgressSignal():
	default:
	}
}

// progressReader wraps a reader to report download progress
type progressReader struct {
	reader   io.Reader
	transfer *Transfer
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.transfer.received.Add(int64(n))
		if ok, _ := r.transfer.progress.Allow(); ok {
			r.transfer.emitProgress()
		}
	}
	return n, err
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger
type leveledLogger struct {
	logger *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}
