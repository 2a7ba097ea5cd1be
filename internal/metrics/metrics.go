// Package metrics exposes the per-source clock counters in the Prometheus
// text exposition format, over plain net/http: there is no routing or
// content negotiation to justify pulling in a framework for one endpoint.
package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/meridianvideo/inputclockd/internal/clock"
)

func formatMetric(key, name string, value int64, nowUnixMilli int64) string {
	return key + "{source=\"" + name + "\"} " + strconv.FormatInt(value, 10) + " " +
		strconv.FormatInt(nowUnixMilli, 10) + "\n"
}

// Registry supplies the set of clocks to export, keyed by source name.
type Registry interface {
	Clocks() map[string]*clock.Clock
}

// Warner receives a startup diagnostic. *logger.Logger satisfies it.
type Warner interface {
	Infof(format string, args ...interface{})
}

// Metrics is a metrics exporter.
type Metrics struct {
	registry Registry

	listener net.Listener
	server   *http.Server
}

// New allocates a Metrics listening on address ("host:port").
func New(address string, registry Registry, warner Warner) (*Metrics, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		registry: registry,
		listener: listener,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.onMetrics)

	m.server = &http.Server{
		Handler: mux,
	}

	if warner != nil {
		warner.Infof("metrics listener opened on %s", address)
	}

	go m.run()
	return m, nil
}

// Close shuts the exporter down.
func (m *Metrics) Close() {
	m.server.Shutdown(context.Background())
}

func (m *Metrics) run() {
	err := m.server.Serve(m.listener)
	if err != http.ErrServerClosed {
		panic(err)
	}
}

func (m *Metrics) onMetrics(w http.ResponseWriter, req *http.Request) {
	nowUnixMilli := time.Now().UnixNano() / 1e6

	clocks := m.registry.Clocks()
	names := make([]string, 0, len(clocks))
	for name := range clocks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for _, name := range names {
		clk := clocks[name]
		out += formatMetric("iclock_network_jitter_us", name, clk.NetworkJitter(), nowUnixMilli)
		out += formatMetric("iclock_decoder_latency_us", name, clk.DecoderLatency(), nowUnixMilli)
		out += formatMetric("iclock_buffering_duration_us", name, clk.BufferingDuration(), nowUnixMilli)
		out += formatMetric("iclock_ts_max_us", name, clk.TSMax(), nowUnixMilli)
		out += formatMetric("iclock_rate", name, clk.GetRate(), nowUnixMilli)
	}

	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out) //nolint:errcheck
}
