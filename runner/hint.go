package runner

import "runtime"

// swappable for tests
var runtimeGOOS = runtime.GOOS

// InstallHint returns the platform-appropriate way to install mitmproxy.
func InstallHint() string {
	switch runtimeGOOS {
	case "darwin":
		return "brew install mitmproxy"
	case "linux":
		return "sudo apt install mitmproxy, or see https://docs.mitmproxy.org/stable/overview-installation/"
	case "windows":
		return "choco install mitmproxy, or see https://docs.mitmproxy.org/stable/overview-installation/"
	default:
		return "see https://docs.mitmproxy.org/stable/overview-installation/"
	}
}
