package runner

import (
	"os"
	"strconv"

	uuid "github.com/satori/go.uuid"
	_log "github.com/sirupsen/logrus"
)

// SessionLogger tags every log line with a short session id plus the target
// domain and proxy port, and can mirror the session to a JSON file.
type SessionLogger struct {
	SessionID   string
	Domain      string
	Port        int
	LogFilePath string
	logger      *_log.Entry
	fileLogger  *_log.Logger
}

// NewSessionLogger creates a logger for one debug session.
func NewSessionLogger(domain string, port int) *SessionLogger {
	return NewSessionLoggerWithFile(domain, port, "")
}

// NewSessionLoggerWithFile creates a session logger that additionally writes
// JSON records to logFilePath when it is non-empty.
func NewSessionLoggerWithFile(domain string, port int, logFilePath string) *SessionLogger {
	sl := &SessionLogger{
		SessionID:   uuid.NewV4().String()[:8],
		Domain:      domain,
		Port:        port,
		LogFilePath: logFilePath,
	}

	fields := _log.Fields{
		"session_id": sl.SessionID,
		"domain":     sl.Domain,
		"port":       strconv.Itoa(sl.Port),
	}

	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.WithError(err).Errorf("Failed to open session log file: %s", logFilePath)
		} else {
			// Dedicated logger for file output
			sl.fileLogger = _log.New()
			sl.fileLogger.SetOutput(file)
			sl.fileLogger.SetFormatter(&_log.JSONFormatter{})

			sl.logger = sl.fileLogger.WithFields(fields)
			return sl
		}
	}

	// Default: standard logger with persistent fields
	sl.logger = log.WithFields(fields)
	return sl
}

// WithFields adds additional fields to the logger
func (sl *SessionLogger) WithFields(fields _log.Fields) *_log.Entry {
	return sl.logger.WithFields(fields)
}

// Info logs at info level
func (sl *SessionLogger) Info(args ...interface{}) {
	sl.logger.Info(args...)
}

// Infof logs formatted at info level
func (sl *SessionLogger) Infof(format string, args ...interface{}) {
	sl.logger.Infof(format, args...)
}

// Debug logs at debug level
func (sl *SessionLogger) Debug(args ...interface{}) {
	sl.logger.Debug(args...)
}

// Debugf logs formatted at debug level
func (sl *SessionLogger) Debugf(format string, args ...interface{}) {
	sl.logger.Debugf(format, args...)
}

// Warn logs at warn level
func (sl *SessionLogger) Warn(args ...interface{}) {
	sl.logger.Warn(args...)
}

// Warnf logs formatted at warn level
func (sl *SessionLogger) Warnf(format string, args ...interface{}) {
	sl.logger.Warnf(format, args...)
}

// Error logs at error level
func (sl *SessionLogger) Error(args ...interface{}) {
	sl.logger.Error(args...)
}

// Errorf logs formatted at error level
func (sl *SessionLogger) Errorf(format string, args ...interface{}) {
	sl.logger.Errorf(format, args...)
}

// GetEntry returns the underlying logrus entry
func (sl *SessionLogger) GetEntry() *_log.Entry {
	return sl.logger
}
