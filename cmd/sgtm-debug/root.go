package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sgtm-tools/sgtm-debug/config"
	"github.com/sgtm-tools/sgtm-debug/internal/helper"
	"github.com/sgtm-tools/sgtm-debug/redirect"
	"github.com/sgtm-tools/sgtm-debug/runner"
	"github.com/sgtm-tools/sgtm-debug/script"
	"github.com/sgtm-tools/sgtm-debug/version"
)

// errReported marks failures that were already printed for the user, so the
// top level only maps them to a non-zero exit.
var errReported = errors.New("already reported")

type cliFlags struct {
	cfgFile string

	web         bool
	proxyMode   bool
	transparent bool

	listenPort  int
	webPort     int
	confDir     string
	headerName  string
	ignoreHosts []string
	allowHosts  []string

	logLevel string
	logFile  string

	cfg *config.Configuration
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "sgtm-debug <domain> <header-value>",
		Short: "Debug server-side GTM containers by injecting a preview header",
		Long: `sgtm-debug launches mitmproxy with a generated addon that adds the
X-Gtm-Server-Preview header to every request whose host contains the target
domain. By default traffic is intercepted transparently on macOS; use --proxy
to run a regular proxy that clients are pointed at explicitly.`,
		Example: `  sgtm-debug example.com ZW52LWRldjEyMzQ1
  sgtm-debug example.com ZW52LWRldjEyMzQ1 --web
  sgtm-debug example.com ZW52LWRldjEyMzQ1 --proxy`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Init(flags.cfgFile)
			if err != nil {
				return err
			}
			flags.cfg = cfg
			setupLogging(resolveString(cmd, "log-level", flags.logLevel, cfg.Logging.Level))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(cmd, args, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/sgtm-debug/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.headerName, "header-name", "", "header to inject (default "+script.DefaultHeaderName+")")

	cmd.Flags().BoolVar(&flags.web, "web", false, "use the mitmweb interface (default: console)")
	cmd.Flags().BoolVar(&flags.proxyMode, "proxy", false, "use manual proxy mode (requires client configuration)")
	cmd.Flags().BoolVar(&flags.transparent, "transparent", false, "use transparent proxy mode (default)")
	cmd.Flags().IntVar(&flags.listenPort, "listen-port", config.DefaultListenPort, "proxy listen port")
	cmd.Flags().IntVar(&flags.webPort, "web-port", config.DefaultWebPort, "web interface port")
	cmd.Flags().StringVar(&flags.confDir, "confdir", "", "mitmproxy configuration directory (default "+config.DefaultConfDir+")")
	cmd.Flags().StringSliceVar(&flags.ignoreHosts, "ignore-hosts", nil, "host patterns mitmproxy passes through without interception")
	cmd.Flags().StringSliceVar(&flags.allowHosts, "allow-hosts", nil, "host patterns mitmproxy intercepts, ignoring all others")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "mirror session logs to this file as JSON")

	cmd.AddCommand(newScriptCmd(flags))
	cmd.AddCommand(newDoctorCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func runDebug(cmd *cobra.Command, args []string, flags *cliFlags) error {
	if len(args) < 2 {
		fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
		return errReported
	}

	domain, headerValue := args[0], args[1]
	cfg := flags.cfg
	log.Infof("sgtm-debug version %s", version.String())

	listenPort := resolveInt(cmd, "listen-port", flags.listenPort, cfg.Proxy.ListenPort)
	webPort := resolveInt(cmd, "web-port", flags.webPort, cfg.Proxy.WebPort)
	headerName := resolveString(cmd, "header-name", flags.headerName, cfg.Header.Name)
	ignoreHosts := resolveSlice(cmd, "ignore-hosts", flags.ignoreHosts, cfg.Hosts.Ignore)
	allowHosts := resolveSlice(cmd, "allow-hosts", flags.allowHosts, cfg.Hosts.Allow)
	logFile := resolveString(cmd, "log-file", flags.logFile, cfg.Logging.File)

	confDir := resolveString(cmd, "confdir", flags.confDir, cfg.Proxy.ConfDir)
	if expanded, err := helper.ExpandTilde(confDir); err == nil {
		confDir = expanded
	}

	session := runner.NewSessionLoggerWithFile(domain, listenPort, logFile)
	session.Infof("Starting SGTM debug session for domain: %s", domain)
	session.Infof("Will inject %s: %s", headerName, headerValue)

	// an empty domain is a substring of every host
	if script.Matches(domain, "") {
		session.Warn("Target domain is empty, the preview header will be injected into every request")
	}

	// filters that would make mitmproxy bypass the target entirely
	if len(ignoreHosts) > 0 && helper.MatchHost(domain, ignoreHosts) {
		session.Warn("Target domain matches an ignore-hosts pattern, the preview header will not be injected")
	}
	if len(allowHosts) > 0 && !helper.MatchHost(domain, allowHosts) {
		session.Warn("Target domain matches no allow-hosts pattern, the preview header will not be injected")
	}

	body, err := script.Render(script.Options{
		Domain:      domain,
		HeaderName:  headerName,
		HeaderValue: headerValue,
	})
	if err != nil {
		return err
	}
	scriptPath, err := script.WriteTemp(body)
	if err != nil {
		return err
	}
	defer script.Remove(scriptPath)

	// catch interrupts from here on, so a Ctrl+C during pf setup still runs
	// the deferred cleanup instead of killing the process outright
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	opts := &runner.Options{
		Mode:        lo.Ternary(flags.proxyMode, runner.ModeRegular, runner.ModeTransparent),
		Web:         flags.web,
		ListenPort:  listenPort,
		WebPort:     webPort,
		ConfDir:     confDir,
		ScriptPath:  scriptPath,
		IgnoreHosts: helper.PatternRegexes(ignoreHosts),
		AllowHosts:  helper.PatternRegexes(allowHosts),
		DumpBin:     cfg.Proxy.DumpBin,
		WebBin:      cfg.Proxy.WebBin,
	}

	// resolve the binary before touching pf rules so a missing install
	// leaves the system untouched
	if _, err := exec.LookPath(opts.Binary()); err != nil {
		return &runner.NotFoundError{Binary: opts.Binary()}
	}

	if opts.Mode == runner.ModeTransparent {
		session.Info("Setting up transparent proxy")
		if err := redirect.Setup(cmd.Context(), opts.ListenPort); err != nil {
			if interrupted(sigCh) {
				// an aborted sudo can leave part of the pf state applied
				redirect.Teardown(context.Background())
				session.Info("Debug session stopped")
				return nil
			}
			if errors.Is(err, redirect.ErrUnsupported) {
				session.Warn("Transparent mode is not supported on this platform, falling back to manual proxy mode")
			} else {
				session.Warnf("Could not set up transparent proxy: %v. Falling back to manual proxy mode", err)
			}
			opts.Mode = runner.ModeRegular
		} else {
			defer redirect.Teardown(context.Background())
			session.Info("Transparent proxy enabled, all HTTP/HTTPS traffic will be intercepted")
		}
	}

	if interrupted(sigCh) {
		session.Info("Debug session stopped")
		return nil
	}

	if opts.Mode == runner.ModeRegular {
		session.Infof("Configure your client to use proxy 127.0.0.1:%d", opts.ListenPort)
	}
	if opts.Web {
		session.Infof("Web interface: http://127.0.0.1:%d", opts.WebPort)
	}
	session.Info("Press Ctrl+C to stop")

	return runner.NewSupervisorWithSignals(opts, session, sigCh).Run(cmd.Context())
}

// interrupted reports whether a stop signal already arrived.
func interrupted(ch <-chan os.Signal) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func setupLogging(level string) {
	log.SetReportCaller(false)
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// resolveString prefers the flag value when the flag was set on the command
// line, the config value otherwise.
func resolveString(cmd *cobra.Command, name, flagValue, cfgValue string) string {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return cfgValue
}

func resolveInt(cmd *cobra.Command, name string, flagValue, cfgValue int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return cfgValue
}

func resolveSlice(cmd *cobra.Command, name string, flagValue, cfgValue []string) []string {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return cfgValue
}
