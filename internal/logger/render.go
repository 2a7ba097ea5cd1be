package logger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gookit/color"
)

// https://golang.org/src/log/log.go#L78
func itoa(buf *bytes.Buffer, i int, wid int) {
	var b [20]byte
	bp := len(b) - 1
	for i >= 10 || wid > 1 {
		wid--
		q := i / 10
		b[bp] = byte('0' + i - q*10)
		bp--
		i = q
	}
	b[bp] = byte('0' + i)
	buf.Write(b[bp:])
}

func writeTime(buf *bytes.Buffer, t time.Time, useColor bool) {
	var raw bytes.Buffer

	year, month, day := t.Date()
	itoa(&raw, year, 4)
	raw.WriteByte('/')
	itoa(&raw, int(month), 2)
	raw.WriteByte('/')
	itoa(&raw, day, 2)
	raw.WriteByte(' ')

	hour, min, sec := t.Clock()
	itoa(&raw, hour, 2)
	raw.WriteByte(':')
	itoa(&raw, min, 2)
	raw.WriteByte(':')
	itoa(&raw, sec, 2)
	raw.WriteByte(' ')

	if useColor {
		buf.WriteString(color.RenderString(color.Gray.Code(), raw.String()))
	} else {
		buf.Write(raw.Bytes())
	}
}

func writeLevel(buf *bytes.Buffer, level Level, useColor bool) {
	label := level.String()

	if !useColor {
		buf.WriteString(label)
		buf.WriteByte(' ')
		return
	}

	var code string
	switch level {
	case Debug:
		code = color.Debug.Code()
	case Info:
		code = color.Green.Code()
	case Warn:
		code = color.Warn.Code()
	case Error:
		code = color.Error.Code()
	default:
		code = color.Gray.Code()
	}
	buf.WriteString(color.RenderString(code, label))
	buf.WriteByte(' ')
}

func writeContent(buf *bytes.Buffer, format string, args []interface{}) {
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')
}
