// Package redirect manages the system-level traffic redirection behind
// transparent mode: pf rules steering TCP 80 and 443 into the local proxy
// port. Only darwin has pf, so Setup reports ErrUnsupported everywhere else.
package redirect

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	_log "github.com/sirupsen/logrus"
)

var log = _log.WithField("at", "redirect")

// ErrUnsupported reports that the current platform cannot do system-level
// redirection. Callers fall back to a regular-mode proxy invocation.
var ErrUnsupported = errors.New("transparent redirection is only supported on darwin")

var (
	// swappable for tests
	runtimeGOOS = runtime.GOOS
	execCommand = execCommandFunc
)

func execCommandFunc(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func pfRules(port int) string {
	return fmt.Sprintf(`
rdr pass inet proto tcp from any to any port 80 -> 127.0.0.1 port %d
rdr pass inet proto tcp from any to any port 443 -> 127.0.0.1 port %d
`, port, port)
}

// Setup enables IP forwarding and loads pf rdr rules redirecting TCP 80 and
// 443 to the proxy port. Commands run under sudo and may prompt for a
// password.
func Setup(ctx context.Context, port int) error {
	if runtimeGOOS != "darwin" {
		return ErrUnsupported
	}

	if out, err := execCommand(ctx, "", "sudo", "sysctl", "-w", "net.inet.ip.forwarding=1"); err != nil {
		return errors.Wrapf(err, "enable ip forwarding: %s", strings.TrimSpace(out))
	}
	if out, err := execCommand(ctx, pfRules(port), "sudo", "pfctl", "-f", "/dev/stdin"); err != nil {
		return errors.Wrapf(err, "load pf rules: %s", strings.TrimSpace(out))
	}
	if out, err := execCommand(ctx, "", "sudo", "pfctl", "-e"); err != nil {
		// pfctl -e exits non-zero when pf is already enabled
		if !strings.Contains(out, "already enabled") {
			return errors.Wrapf(err, "enable pf: %s", strings.TrimSpace(out))
		}
		log.Debug("pf already enabled")
	}
	return nil
}

// Teardown disables pf and IP forwarding again. Best effort: failures are
// logged at debug and otherwise ignored.
func Teardown(ctx context.Context) {
	if runtimeGOOS != "darwin" {
		return
	}
	if out, err := execCommand(ctx, "", "sudo", "pfctl", "-d"); err != nil {
		log.WithError(err).Debugf("disable pf: %s", strings.TrimSpace(out))
	}
	if out, err := execCommand(ctx, "", "sudo", "sysctl", "-w", "net.inet.ip.forwarding=0"); err != nil {
		log.WithError(err).Debugf("disable ip forwarding: %s", strings.TrimSpace(out))
	}
}

// Supported reports whether the current platform can do transparent
// redirection at all.
func Supported() bool {
	return runtimeGOOS == "darwin"
}
