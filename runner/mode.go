package runner

// Mode selects how mitmproxy attaches to traffic.
type Mode int

const (
	// ModeTransparent intercepts traffic through OS-level port redirection.
	// mitmproxy runs with --mode transparent and clients need no
	// configuration.
	ModeTransparent Mode = iota

	// ModeRegular is an explicit HTTP(S) proxy that clients must be
	// configured to use.
	ModeRegular
)

func (m Mode) String() string {
	if m == ModeRegular {
		return "regular"
	}
	return "transparent"
}
