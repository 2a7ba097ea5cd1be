package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, contents string) string {
	dir := t.TempDir()
	p := filepath.Join(dir, "inputclockd.yml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestNewStartsConfiguredSources(t *testing.T) {
	confPath := writeConf(t, `
apiAddress: "127.0.0.1:0"
metricsAddress: "127.0.0.1:0"
crAverage: 50
sources:
  main:
    address: "udp://127.0.0.1:0"
    pid: 256
`)

	c, ok := New([]string{confPath})
	require.True(t, ok)
	defer c.Close()

	require.Eventually(t, func() bool {
		return len(c.ClockNames()) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"main"}, c.ClockNames())

	clk, ok := c.Clock("main")
	require.True(t, ok)
	require.NotNil(t, clk)

	clocks := c.Clocks()
	require.Contains(t, clocks, "main")
}

func TestNewFailsOnBadSourceAddress(t *testing.T) {
	confPath := writeConf(t, `
apiAddress: "127.0.0.1:0"
metricsAddress: "127.0.0.1:0"
sources:
  main:
    address: "not-a-valid-scheme"
`)

	_, ok := New([]string{confPath})
	require.False(t, ok)
}

func TestClockUnknownNameNotFound(t *testing.T) {
	confPath := writeConf(t, `
apiAddress: "127.0.0.1:0"
metricsAddress: "127.0.0.1:0"
`)

	c, ok := New([]string{confPath})
	require.True(t, ok)
	defer c.Close()

	_, ok = c.Clock("ghost")
	require.False(t, ok)
}
