package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// NotFoundError reports that the mitmproxy binary could not be resolved
// through PATH.
type NotFoundError struct {
	Binary string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Binary)
}

// ExitError carries the exit code of a finished mitmproxy process.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("mitmproxy exited with code %d", e.Code)
}

// Supervisor runs one mitmproxy process with the terminal attached and
// mediates its lifecycle.
type Supervisor struct {
	opts    *Options
	session *SessionLogger
	signals <-chan os.Signal

	interrupted atomic.Bool
}

func NewSupervisor(opts *Options, session *SessionLogger) *Supervisor {
	return NewSupervisorWithSignals(opts, session, nil)
}

// NewSupervisorWithSignals reuses an externally installed signal channel, so
// interrupts that arrived before the child process existed are still honored.
func NewSupervisorWithSignals(opts *Options, session *SessionLogger, signals <-chan os.Signal) *Supervisor {
	if session == nil {
		session = NewSessionLogger("", opts.ListenPort)
	}
	return &Supervisor{opts: opts, session: session, signals: signals}
}

// Interrupted reports whether the last Run was stopped by a signal rather
// than by the child exiting on its own.
func (s *Supervisor) Interrupted() bool {
	return s.interrupted.Load()
}

// Run resolves the configured binary, starts it and blocks until it exits.
// SIGINT and SIGTERM are forwarded to the child so mitmproxy shuts down
// cleanly; a second signal kills it outright. When the session ends by
// interrupt Run returns nil, otherwise a non-zero child exit surfaces as an
// ExitError.
func (s *Supervisor) Run(ctx context.Context) error {
	binary := s.opts.Binary()
	path, err := exec.LookPath(binary)
	if err != nil {
		return &NotFoundError{Binary: binary}
	}

	args := s.opts.Args()
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	sigCh := s.signals
	if sigCh == nil {
		own := make(chan os.Signal, 2)
		signal.Notify(own, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(own)
		sigCh = own
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", binary)
	}
	s.session.Debugf("exec %s %s", path, strings.Join(args, " "))
	s.session.Infof("mitmproxy running, pid %d", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigCh:
			if s.interrupted.Swap(true) {
				// second signal, stop waiting for a graceful exit
				s.session.Warn("Forcing mitmproxy to stop")
				_ = cmd.Process.Kill()
				continue
			}
			s.session.Info("Stopping debug session")
			_ = cmd.Process.Signal(sig)
		case err := <-done:
			if s.interrupted.Load() {
				s.session.Info("Debug session stopped")
				return nil
			}
			return exitResult(err)
		}
	}
}

func exitResult(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}
