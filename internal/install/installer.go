package install

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/interp"
	"github.com/perfbook/companion-backend/internal/lang"
	"github.com/perfbook/companion-backend/internal/logging"
)

// Status is the installer's externally observable state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInstalling Status = "installing"
	StatusInstalled  Status = "installed"
	StatusError      Status = "error"
)

// Snapshot is a read-only view of installation state. Percentage is
// monotonically non-decreasing within a single installing run.
type Snapshot struct {
	Status     Status `json:"status"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
}

// ProgressFunc receives each milestone synchronously, before the next
// installation phase begins.
type ProgressFunc func(Snapshot)

// Error is the recoverable installation failure; the caller retries by
// calling Install again.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("install: %s: %v", e.Reason, e.Err)
	}
	return "install: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Package identifies the companion archive.
type Package struct {
	// Name is the importable package name, also the directory prefix
	// checked inside the archive.
	Name string
	// URL locates the archive.
	URL string
	// FetchLocal fetches the archive bytes here before handing them to
	// the interpreter; otherwise the interpreter fetches the URL itself.
	FetchLocal bool
}

// Fetcher retrieves the archive bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Installer is the package-installation state machine.
type Installer struct {
	pkg     Package
	fetcher Fetcher
	profile lang.Profile
	logger  *logging.Logger

	mu        sync.Mutex
	status    Status
	pct       int
	message   string
	reason    string
	listeners []ProgressFunc
}

// New creates an installer in the Idle state.
func New(pkg Package, fetcher Fetcher, profile lang.Profile, logger *logging.Logger) *Installer {
	return &Installer{
		pkg:     pkg,
		fetcher: fetcher,
		profile: profile,
		logger:  logger,
		status:  StatusIdle,
	}
}

// OnProgress registers a milestone listener. Listeners are invoked
// synchronously in registration order.
func (i *Installer) OnProgress(fn ProgressFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, fn)
}

// Snapshot returns the current state.
func (i *Installer) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

// Installed reports whether the package is active.
func (i *Installer) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status == StatusInstalled
}

// Install drives the package through fetch, structural verification,
// activation and smoke verification. Idempotent: returns true immediately
// when already installed; returns false without side effects when another
// install is in flight. On failure the state moves to Error and the
// triggering error is returned so the caller can retry.
func (i *Installer) Install(ctx context.Context, rt interp.Interpreter) (bool, error) {
	i.mu.Lock()
	switch i.status {
	case StatusInstalled:
		i.mu.Unlock()
		return true, nil
	case StatusInstalling:
		i.mu.Unlock()
		return false, nil
	}
	// Entering Installing restarts the progress scale, including after a
	// previous Error.
	i.status = StatusInstalling
	i.pct = 0
	i.reason = ""
	i.message = "Starting installation"
	i.mu.Unlock()

	i.progress(0, "Starting installation")

	archive := interp.Archive{Name: i.pkg.Name, URL: i.pkg.URL}

	if i.pkg.FetchLocal {
		i.progress(10, "Fetching package archive")
		data, err := i.fetcher.Fetch(ctx, i.pkg.URL)
		if err != nil {
			return false, i.fail("archive fetch failed", err)
		}
		archive.Data = data

		i.progress(30, "Verifying archive contents")
		count, err := VerifyArchive(i.pkg.URL, data, i.pkg.Name)
		if err != nil {
			return false, i.fail("archive verification failed", err)
		}
		i.logger.Debug("Archive verified",
			zap.String("package", i.pkg.Name),
			zap.Int("files", count),
		)
	} else {
		i.progress(30, "Delegating archive fetch to interpreter")
	}

	i.progress(60, "Activating package in interpreter")
	if err := rt.Load(ctx, archive); err != nil {
		return false, i.fail("package activation failed", err)
	}

	// Smoke verification guards against partially-usable installs: the
	// raw install can report success while representative imports fail.
	i.progress(90, "Running smoke verification")
	for _, check := range i.profile.SmokeChecks {
		if _, err := rt.Run(ctx, check); err != nil {
			return false, i.fail("smoke verification failed", err)
		}
	}

	i.mu.Lock()
	i.status = StatusInstalled
	i.mu.Unlock()
	i.progress(100, "Package installed")

	i.logger.Info("Companion package installed", zap.String("package", i.pkg.Name))
	return true, nil
}

// Reset returns the installer to Idle. Exists for retry flows and tests.
func (i *Installer) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = StatusIdle
	i.pct = 0
	i.message = ""
	i.reason = ""
}

func (i *Installer) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     i.status,
		Percentage: i.pct,
		Message:    i.message,
		Reason:     i.reason,
	}
}

// progress records a milestone and delivers it synchronously to every
// listener. Percentage never moves backwards within a run.
func (i *Installer) progress(pct int, message string) {
	i.mu.Lock()
	if pct > i.pct {
		i.pct = pct
	}
	i.message = message
	snap := i.snapshotLocked()
	listeners := make([]ProgressFunc, len(i.listeners))
	copy(listeners, i.listeners)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (i *Installer) fail(reason string, err error) error {
	i.mu.Lock()
	i.status = StatusError
	i.reason = reason
	i.message = reason
	snap := i.snapshotLocked()
	listeners := make([]ProgressFunc, len(i.listeners))
	copy(listeners, i.listeners)
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}

	i.logger.Error("Installation failed",
		zap.String("package", i.pkg.Name),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return &Error{Reason: reason, Err: err}
}
