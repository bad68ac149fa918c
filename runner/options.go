package runner

import (
	"strconv"

	"github.com/samber/lo"
)

// Default binary names, resolved through PATH.
const (
	DefaultDumpBin = "mitmdump"
	DefaultWebBin  = "mitmweb"
)

// Options describes a single mitmproxy invocation.
type Options struct {
	Mode Mode
	Web  bool

	ListenPort int
	WebPort    int
	ConfDir    string
	ScriptPath string

	// IgnoreHosts and AllowHosts are host-matching regular expressions
	// passed straight through to mitmproxy.
	IgnoreHosts []string
	AllowHosts  []string

	// DumpBin and WebBin override the binary names, mainly for
	// non-standard installs.
	DumpBin string
	WebBin  string
}

// Binary returns the executable to launch: the web binary when the web
// interface is requested, the console binary otherwise.
func (o *Options) Binary() string {
	dump := lo.Ternary(o.DumpBin != "", o.DumpBin, DefaultDumpBin)
	web := lo.Ternary(o.WebBin != "", o.WebBin, DefaultWebBin)
	return lo.Ternary(o.Web, web, dump)
}

// Args builds the mitmproxy argument list. The order is stable so
// invocations are reproducible across runs.
func (o *Options) Args() []string {
	args := []string{
		"--listen-port", strconv.Itoa(o.ListenPort),
		"--script", o.ScriptPath,
		"--set", "confdir=" + o.ConfDir,
	}
	if o.Mode == ModeTransparent {
		args = append(args, "--mode", "transparent")
	}
	if o.Web {
		args = append(args, "--web-port", strconv.Itoa(o.WebPort))
	}
	for _, pattern := range o.IgnoreHosts {
		args = append(args, "--ignore-hosts", pattern)
	}
	for _, pattern := range o.AllowHosts {
		args = append(args, "--allow-hosts", pattern)
	}
	return args
}
