// Package logger implements the process-wide log handler: a level filter in
// front of one or more destinations (stdout, a file, syslog), each rendering
// its own timestamped, leveled line.
package logger

import (
	"sync"
	"time"
)

// Level is a log level. Entries below the handler's configured level are
// dropped before any destination sees them.
type Level int

// Log levels, in increasing severity.
const (
	Debug Level = iota + 1
	Info
	Warn
	Error
)

// String returns the three-letter label used in rendered log lines.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEB"
	case Info:
		return "INF"
	case Warn:
		return "WAR"
	case Error:
		return "ERR"
	default:
		return "???"
	}
}

// Destination is a log output.
type Destination int

const (
	// DestinationStdout writes colorized logs to the standard output.
	DestinationStdout Destination = iota

	// DestinationFile writes logs to a file.
	DestinationFile

	// DestinationSyslog writes logs to the system logger.
	DestinationSyslog
)

type destination interface {
	log(t time.Time, level Level, format string, args ...interface{})
	close()
}

// Logger is the process-wide log handler. It satisfies clock.Warner via
// Warnf, so a *Logger can be passed directly to clock.New.
type Logger struct {
	level Level

	mutex        sync.Mutex
	destinations []destination
}

// New allocates a Logger writing to the given destinations. filePath is only
// consulted when destinations contains DestinationFile.
func New(level Level, destinations map[Destination]struct{}, filePath string) (*Logger, error) {
	l := &Logger{
		level: level,
	}

	if _, ok := destinations[DestinationStdout]; ok {
		l.destinations = append(l.destinations, newDestinationStdout())
	}

	if _, ok := destinations[DestinationFile]; ok {
		d, err := newDestinationFile(filePath)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.destinations = append(l.destinations, d)
	}

	if _, ok := destinations[DestinationSyslog]; ok {
		d, err := newDestinationSyslog()
		if err != nil {
			l.Close()
			return nil, err
		}
		l.destinations = append(l.destinations, d)
	}

	return l, nil
}

// Close releases every destination's resources.
func (l *Logger) Close() {
	for _, d := range l.destinations {
		d.close()
	}
}

// Log writes a log entry at the given level to every configured destination.
func (l *Logger) Log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	for _, d := range l.destinations {
		d.log(now, level, format, args...)
	}
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.Log(Debug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.Log(Info, format, args...) }

// Warnf logs at Warn level. It satisfies clock.Warner.
func (l *Logger) Warnf(format string, args ...interface{}) { l.Log(Warn, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.Log(Error, format, args...) }
