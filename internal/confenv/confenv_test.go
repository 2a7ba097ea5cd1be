package confenv

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sourceEntry struct {
	PID uint64
}

type testConf struct {
	Rate       int
	Debug      bool
	IdleWindow time.Duration
	Tags       []string
	Sources    map[string]*sourceEntry
}

func TestLoad(t *testing.T) {
	os.Setenv("ICLOCK_RATE", "500")
	defer os.Unsetenv("ICLOCK_RATE")

	os.Setenv("ICLOCK_DEBUG", "true")
	defer os.Unsetenv("ICLOCK_DEBUG")

	os.Setenv("ICLOCK_IDLEWINDOW", "5s")
	defer os.Unsetenv("ICLOCK_IDLEWINDOW")

	os.Setenv("ICLOCK_TAGS", "a,b,c")
	defer os.Unsetenv("ICLOCK_TAGS")

	os.Setenv("ICLOCK_SOURCES_MAIN_PID", "256")
	defer os.Unsetenv("ICLOCK_SOURCES_MAIN_PID")

	var c testConf
	require.NoError(t, Load("ICLOCK", &c))

	require.Equal(t, 500, c.Rate)
	require.True(t, c.Debug)
	require.Equal(t, 5*time.Second, c.IdleWindow)
	require.Equal(t, []string{"a", "b", "c"}, c.Tags)

	main, ok := c.Sources["main"]
	require.True(t, ok)
	require.Equal(t, uint64(256), main.PID)
}
