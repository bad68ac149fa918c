package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sgtm-tools/sgtm-debug/runner"
)

func writeFakeBinary(t *testing.T, dir, name, script string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755)
	qt.Assert(t, err, qt.IsNil)
}

func testOptions(dir string) *runner.Options {
	return &runner.Options{
		Mode:       runner.ModeRegular,
		ListenPort: 8080,
		ConfDir:    dir,
		ScriptPath: filepath.Join(dir, "addon.py"),
	}
}

func TestRunMissingBinary(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	t.Setenv("PATH", dir)

	s := runner.NewSupervisor(testOptions(dir), nil)
	err := s.Run(context.Background())

	var nfe *runner.NotFoundError
	c.Assert(err, qt.ErrorAs, &nfe)
	c.Assert(nfe.Binary, qt.Equals, "mitmdump")
	c.Assert(err.Error(), qt.Contains, "not found in PATH")
}

func TestRunCleanExit(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFakeBinary(t, dir, "mitmdump", "#!/bin/sh\nexit 0\n")
	t.Setenv("PATH", dir)

	s := runner.NewSupervisor(testOptions(dir), nil)
	err := s.Run(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(s.Interrupted(), qt.IsFalse)
}

func TestRunPassesThroughExitCode(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFakeBinary(t, dir, "mitmdump", "#!/bin/sh\nexit 7\n")
	t.Setenv("PATH", dir)

	s := runner.NewSupervisor(testOptions(dir), nil)
	err := s.Run(context.Background())

	var exitErr *runner.ExitError
	c.Assert(err, qt.ErrorAs, &exitErr)
	c.Assert(exitErr.Code, qt.Equals, 7)
}

func TestRunSelectsWebBinary(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFakeBinary(t, dir, "mitmweb", "#!/bin/sh\nexit 0\n")
	t.Setenv("PATH", dir)

	opts := testOptions(dir)
	opts.Web = true
	opts.WebPort = 8081

	s := runner.NewSupervisor(opts, nil)
	c.Assert(s.Run(context.Background()), qt.IsNil)
}

func TestRunStopsOnInterrupt(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFakeBinary(t, dir, "mitmdump", "#!/bin/sh\ntrap 'exit 0' INT TERM\nsleep 10 >/dev/null 2>&1 &\nwait\n")
	t.Setenv("PATH", dir)

	// a signal that arrived before Run must still stop the session
	sigCh := make(chan os.Signal, 2)
	sigCh <- os.Interrupt

	s := runner.NewSupervisorWithSignals(testOptions(dir), nil, sigCh)
	err := s.Run(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(s.Interrupted(), qt.IsTrue)
}

func TestRunKillsOnSecondInterrupt(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	t.Setenv("SGTM_TEST_READY", ready)
	writeFakeBinary(t, dir, "mitmdump", "#!/bin/sh\ntrap '' INT\ntouch \"$SGTM_TEST_READY\"\nsleep 30 >/dev/null 2>&1 &\nwait\n")
	// the fake child needs touch and sleep, so prepend instead of replace
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	sigCh := make(chan os.Signal, 2)
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(ready); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		sigCh <- os.Interrupt
		sigCh <- os.Interrupt
	}()

	s := runner.NewSupervisorWithSignals(testOptions(dir), nil, sigCh)
	start := time.Now()
	err := s.Run(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(s.Interrupted(), qt.IsTrue)
	// the child ignores the first signal, the second must kill it instead of
	// waiting out its sleep
	c.Assert(time.Since(start) < 10*time.Second, qt.IsTrue)
}
