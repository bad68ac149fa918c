// Package runner builds mitmproxy invocations and supervises the child
// process for the lifetime of a debug session.
package runner

import (
	_log "github.com/sirupsen/logrus"
)

var log = _log.WithField("at", "runner")
