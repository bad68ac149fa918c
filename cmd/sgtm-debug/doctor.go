package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sgtm-tools/sgtm-debug/redirect"
	"github.com/sgtm-tools/sgtm-debug/runner"
)

func newDoctorCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that mitmproxy and platform prerequisites are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, flags)
		},
	}
}

func runDoctor(cmd *cobra.Command, flags *cliFlags) error {
	cfg := flags.cfg
	out := cmd.OutOrStdout()
	ok := true

	dump := cfg.Proxy.DumpBin
	if path, err := exec.LookPath(dump); err != nil {
		ok = false
		fmt.Fprintf(out, "missing: %s not found in PATH\n", dump)
		fmt.Fprintf(out, "         install it with: %s\n", runner.InstallHint())
	} else {
		fmt.Fprintf(out, "ok:      %s found at %s%s\n", dump, path, binaryVersion(cmd, path))
	}

	web := cfg.Proxy.WebBin
	if path, err := exec.LookPath(web); err != nil {
		fmt.Fprintf(out, "missing: %s not found in PATH (needed for --web)\n", web)
	} else {
		fmt.Fprintf(out, "ok:      %s found at %s\n", web, path)
	}

	if redirect.Supported() {
		fmt.Fprintln(out, "ok:      transparent mode available (pf)")
	} else {
		fmt.Fprintln(out, "info:    transparent mode unavailable on this platform, manual proxy mode is used")
	}

	// Proxy.ConfDir is already tilde-expanded by config.Init
	caCert := filepath.Join(cfg.Proxy.ConfDir, "mitmproxy-ca-cert.pem")
	if _, err := os.Stat(caCert); err == nil {
		fmt.Fprintf(out, "ok:      CA certificate present at %s\n", caCert)
	} else {
		fmt.Fprintf(out, "info:    CA certificate not generated yet (%s), mitmproxy creates it on first run\n", caCert)
	}

	if !ok {
		return errReported
	}
	return nil
}

// binaryVersion asks the binary for its version, first line only. Failures
// just leave the version out.
func binaryVersion(cmd *cobra.Command, path string) string {
	out, err := exec.CommandContext(cmd.Context(), path, "--version").Output()
	if err != nil {
		return ""
	}
	version := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	if version == "" {
		return ""
	}
	return " (" + version + ")"
}
