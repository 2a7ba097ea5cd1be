// Package pcrsource feeds a clock.Clock from the program clock reference
// (PCR) carried in an MPEG-TS stream's adaptation fields.
package pcrsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/asticode/go-astits"

	"github.com/meridianvideo/inputclockd/internal/clock"
)

// Options configures a Source.
type Options struct {
	// PID restricts PCR extraction to one elementary PID. 0 accepts the
	// PCR-bearing adaptation field of any PID in the stream.
	PID uint16
}

// Source demuxes a live MPEG-TS feed and drives a clock.Clock's Update from
// every PCR it finds. It keeps no state of its own beyond Options; all
// stream/system reconciliation lives in the clock it feeds.
type Source struct {
	opts Options
	now  clock.NowFunc
}

// New allocates a Source. now supplies the host monotonic clock used to
// timestamp each PCR's arrival; it is read once per PCR, right after the
// adaptation field carrying it is parsed.
func New(opts Options, now clock.NowFunc) *Source {
	return &Source{opts: opts, now: now}
}

// Listen opens address, a udp://host:port URL, for reading. The returned
// connection is an unconnected UDP socket: it accepts datagrams from any
// sender, which is the common case for a multicast PCR feed.
func Listen(address string) (io.ReadCloser, error) {
	const scheme = "udp://"
	if !strings.HasPrefix(address, scheme) {
		return nil, fmt.Errorf("pcrsource: unsupported address scheme: %s", address)
	}

	addr, err := net.ResolveUDPAddr("udp", address[len(scheme):])
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run demuxes r until ctx is canceled or r is exhausted, feeding every PCR
// it finds into clk. canPace is always false: a PCR feed is a live,
// externally paced source, never one the caller can rewind or throttle.
func (s *Source) Run(ctx context.Context, r io.Reader, clk *clock.Clock) error {
	dem := astits.NewDemuxer(ctx, r)

	for {
		data, err := dem.NextData()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, astits.ErrNoMorePackets) {
				return nil
			}
			return fmt.Errorf("pcrsource: %w", err)
		}

		if data.FirstPacket == nil || data.FirstPacket.AdaptationField == nil || !data.FirstPacket.AdaptationField.HasPCR {
			continue
		}
		if s.opts.PID != 0 && data.PID != s.opts.PID {
			continue
		}

		streamUs := pcrToMicros(data.FirstPacket.AdaptationField.PCR)
		clk.Update(streamUs, s.now(), false, true)
	}
}

// pcrToMicros converts a 27 MHz program clock reference to microseconds.
func pcrToMicros(pcr *astits.ClockReference) int64 {
	return (pcr.Base*300 + pcr.Extension) / 27
}
