// Command inputclockd runs the input clock daemon: it reads one or more
// MPEG-TS PCR feeds, reconciles each against the host clock, and exposes the
// result over HTTP and as Prometheus-text metrics.
package main

import (
	"os"

	"github.com/meridianvideo/inputclockd/internal/core"
)

func main() {
	s, ok := core.New(os.Args[1:])
	if !ok {
		os.Exit(1)
	}
	s.Wait()
}
