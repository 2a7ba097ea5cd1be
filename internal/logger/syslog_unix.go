//go:build !windows
// +build !windows

package logger

import (
	"io"
	native "log/syslog"
)

type syslogWriter struct {
	inner *native.Writer
}

func newSyslog(prefix string) (io.WriteCloser, error) {
	inner, err := native.New(native.LOG_INFO|native.LOG_DAEMON, prefix)
	if err != nil {
		return nil, err
	}

	return &syslogWriter{
		inner: inner,
	}, nil
}

func (w *syslogWriter) Close() error {
	return w.inner.Close()
}

func (w *syslogWriter) Write(p []byte) (int, error) {
	return w.inner.Write(p)
}
