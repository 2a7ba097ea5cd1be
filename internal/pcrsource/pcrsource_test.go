package pcrsource

import (
	"bytes"
	"context"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/stretchr/testify/require"

	"github.com/meridianvideo/inputclockd/internal/clock"
)

func muxPCRPacket(t *testing.T, pcrBase int64) []byte {
	var buf bytes.Buffer
	mux := astits.NewMuxer(context.Background(), &buf)

	mux.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: 256,
		StreamType:    astits.StreamTypeH264Video,
	})
	mux.SetPCRPID(256)
	mux.WriteTables()

	_, err := mux.WriteData(&astits.MuxerData{
		PID: 256,
		AdaptationField: &astits.PacketAdaptationField{
			HasPCR: true,
			PCR:    &astits.ClockReference{Base: pcrBase},
		},
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				StreamID: 224,
			},
			Data: []byte{0, 0, 0, 1},
		},
	})
	require.NoError(t, err)

	return buf.Bytes()
}

func TestRunFeedsClockFromPCR(t *testing.T) {
	raw := muxPCRPacket(t, 90_000) // 90_000 / 90kHz == 1 second

	var fakeNow int64 = 5_000_000
	clk := clock.New(clock.RateDefault, func() int64 { return fakeNow }, nil)

	s := New(Options{PID: 256}, func() int64 { return fakeNow })
	err := s.Run(context.Background(), bytes.NewReader(raw), clk)
	require.NoError(t, err)

	streamStart, systemStart, _, _, err := clk.GetState()
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), streamStart) // 1s in stream-domain microseconds
	require.Equal(t, fakeNow, systemStart)
}

func TestRunIgnoresOtherPIDs(t *testing.T) {
	raw := muxPCRPacket(t, 90_000)

	var fakeNow int64 = 1_000_000
	clk := clock.New(clock.RateDefault, func() int64 { return fakeNow }, nil)

	s := New(Options{PID: 999}, func() int64 { return fakeNow })
	err := s.Run(context.Background(), bytes.NewReader(raw), clk)
	require.NoError(t, err)

	_, _, _, _, err = clk.GetState()
	require.Error(t, err) // no reference was ever set
}

func TestPCRToMicrosConversion(t *testing.T) {
	require.Equal(t, int64(1_000_000), pcrToMicros(&astits.ClockReference{Base: 90_000}))
	require.Equal(t, int64(0), pcrToMicros(&astits.ClockReference{}))
}
