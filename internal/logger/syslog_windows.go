//go:build windows
// +build windows

package logger

import (
	"errors"
	"io"
)

func newSyslog(prefix string) (io.WriteCloser, error) {
	return nil, errors.New("syslog is not supported on windows")
}
