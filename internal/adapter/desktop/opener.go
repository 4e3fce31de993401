package desktop

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/port"
	"github.com/lordseriouspig/nova-shell/internal/util/ratelimiter"
)

// Opener reveals folders in the platform file manager
type Opener struct {
	limiter *ratelimiter.Keyed
	logger  *zap.Logger
	goos    string
	start   func(name string, args ...string) error
}

// Ensure Opener implements port.FolderOpener
var _ port.FolderOpener = (*Opener)(nil)

// NewOpener creates an opener allowing each folder to be opened once per interval
func NewOpener(interval time.Duration, logger *zap.Logger) *Opener {
	o := &Opener{
		limiter: ratelimiter.NewKeyed(interval),
		logger:  logger,
		goos:    runtime.GOOS,
	}
	o.start = func(name string, args ...string) error {
		return launchDetached(name, args, func(err error) {
			if err != nil {
				o.logger.Debug("File manager exited", zap.String("command", name), zap.Error(err))
			}
		})
	}
	return o
}

// OpenFolder launches the file manager on dir without waiting for it
func (o *Opener) OpenFolder(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("path is required")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", domain.ErrFolderMissing, dir)
	}

	if ok, wait := o.limiter.Allow(dir); !ok {
		return fmt.Errorf("%w: retry in %s", domain.ErrFolderRateLimited, wait.Round(time.Millisecond))
	}

	name, args := openCommand(o.goos, dir)
	o.logger.Debug("Opening folder", zap.String("dir", dir), zap.String("command", name))
	if err := o.start(name, args...); err != nil {
		o.limiter.Forget(dir)
		return fmt.Errorf("failed to launch %s: %w", name, err)
	}
	return nil
}

// launchDetached starts name and reaps it in the background once it exits.
// exited receives the result of Wait.
func launchDetached(name string, args []string, exited func(error)) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		exited(cmd.Wait())
	}()
	return nil
}

func openCommand(goos, dir string) (string, []string) {
	switch goos {
	case "windows":
		return "explorer", []string{dir}
	case "darwin":
		return "open", []string{dir}
	default:
		return "xdg-open", []string{dir}
	}
}
