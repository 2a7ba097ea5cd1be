// Package core wires the daemon's pieces together: configuration, the
// logger, a named registry of clocks, each source's demuxer goroutine, and
// the API and metrics listeners.
package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianvideo/inputclockd/internal/api"
	"github.com/meridianvideo/inputclockd/internal/clock"
	"github.com/meridianvideo/inputclockd/internal/conf"
	"github.com/meridianvideo/inputclockd/internal/confwatcher"
	"github.com/meridianvideo/inputclockd/internal/hostclock"
	"github.com/meridianvideo/inputclockd/internal/logger"
	"github.com/meridianvideo/inputclockd/internal/metrics"
	"github.com/meridianvideo/inputclockd/internal/pcrsource"
)

var version = "v0.0.0"

var cliArgs struct {
	Version  bool   `help:"print version"`
	Confpath string `arg:"" default:"inputclockd.yml" optional:""`
}

// source bundles one configured clock with the goroutine feeding it.
type source struct {
	id     uuid.UUID
	clk    *clock.Clock
	cancel context.CancelFunc
}

// Core is the running daemon.
type Core struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	confPath  string

	logger      *logger.Logger
	confWatcher *confwatcher.ConfWatcher
	api         *api.API
	metrics     *metrics.Metrics

	mutex   sync.RWMutex
	sources map[string]*source

	done chan struct{}
}

// New parses args, loads the configuration, and starts every configured
// source, the API listener and the metrics listener. It returns (nil,
// false) on any fatal startup error, having already logged it.
func New(args []string) (*Core, bool) {
	parser, err := kong.New(&cliArgs,
		kong.Description("inputclockd "+version),
		kong.UsageOnError(),
	)
	if err != nil {
		panic(err)
	}

	if _, err := parser.Parse(args); err != nil {
		parser.FatalIfErrorf(err)
	}

	if cliArgs.Version {
		fmt.Println(version) //nolint:forbidigo
		os.Exit(0)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	c := &Core{
		ctx:       ctx,
		ctxCancel: ctxCancel,
		confPath:  cliArgs.Confpath,
		sources:   make(map[string]*source),
		done:      make(chan struct{}),
	}

	if err := c.createResources(); err != nil {
		if c.logger != nil {
			c.Log(logger.Error, "%s", err)
		} else {
			fmt.Printf("ERR: %s\n", err) //nolint:forbidigo
		}
		c.closeResources()
		return nil, false
	}

	go c.run()
	return c, true
}

// Close stops the daemon and waits for it to fully shut down.
func (c *Core) Close() {
	c.ctxCancel()
	<-c.done
}

// Wait blocks until the daemon exits on its own (signal, fatal reload).
func (c *Core) Wait() {
	<-c.done
}

// Log is the main logging entrypoint. Together with Warnf, which satisfies
// clock.Warner, it lets core itself be passed where a clock needs a warner.
func (c *Core) Log(level logger.Level, format string, args ...interface{}) {
	c.logger.Log(level, format, args...)
}

// Warnf implements clock.Warner.
func (c *Core) Warnf(format string, args ...interface{}) {
	c.Log(logger.Warn, format, args...)
}

// Clock implements api.Registry.
func (c *Core) Clock(name string) (*clock.Clock, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	s, ok := c.sources[name]
	if !ok {
		return nil, false
	}
	return s.clk, true
}

// ClockNames implements api.Registry.
func (c *Core) ClockNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	return names
}

// Clocks implements metrics.Registry.
func (c *Core) Clocks() map[string]*clock.Clock {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make(map[string]*clock.Clock, len(c.sources))
	for name, s := range c.sources {
		out[name] = s.clk
	}
	return out
}

func (c *Core) run() {
	defer close(c.done)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

outer:
	for {
		select {
		case <-c.confWatcher.Watch():
			c.Log(logger.Info, "reloading configuration (file changed)")
			if err := c.reload(); err != nil {
				c.Log(logger.Error, "%s", err)
				break outer
			}

		case <-interrupt:
			c.Log(logger.Info, "shutting down gracefully")
			break outer

		case <-c.ctx.Done():
			break outer
		}
	}

	c.ctxCancel()
	c.closeResources()
}

func (c *Core) createResources() error {
	cfg, err := conf.Load(c.confPath)
	if err != nil {
		return err
	}

	c.logger, err = logger.New(cfg.LogLevelParsed(), cfg.LogDestinationsParsed(), cfg.LogFile)
	if err != nil {
		return err
	}

	c.Log(logger.Info, "inputclockd %s", version)

	gin.SetMode(gin.ReleaseMode)

	c.confWatcher, err = confwatcher.New(c.confPath)
	if err != nil {
		return err
	}

	for name, sc := range cfg.Sources {
		if err := c.startSource(name, sc, cfg.CRAverage); err != nil {
			return fmt.Errorf("source '%s': %w", name, err)
		}
	}

	c.api = &api.API{
		Address:  cfg.APIAddress,
		Registry: c,
		Warner:   c.logger,
	}
	if err := c.api.Initialize(); err != nil {
		return err
	}

	c.metrics, err = metrics.New(cfg.MetricsAddress, c, c.logger)
	if err != nil {
		return err
	}

	return nil
}

func (c *Core) startSource(name string, sc *conf.Source, crAverage int64) error {
	conn, err := pcrsource.Listen(sc.Address)
	if err != nil {
		return err
	}

	clk := clock.New(sc.Rate, hostclock.Now, c)
	clk.SetJitter(sc.PTSDelay.Microseconds(), crAverage)

	ctx, cancel := context.WithCancel(c.ctx)
	src := pcrsource.New(pcrsource.Options{PID: sc.PID}, hostclock.Now)

	c.mutex.Lock()
	c.sources[name] = &source{id: uuid.New(), clk: clk, cancel: cancel}
	c.mutex.Unlock()

	go func() {
		defer conn.Close()
		if err := src.Run(ctx, conn, clk); err != nil {
			c.Log(logger.Warn, "source '%s' stopped: %s", name, err)
		}
	}()

	return nil
}

// reload re-reads the configuration file and swaps out the source set,
// tearing down sources no longer present and starting any new ones. Sources
// are compared by name only: a source whose name is still present keeps its
// running clock and reference point, and edits to its address, PID, rate or
// PTS delay are not applied to it.
func (c *Core) reload() error {
	cfg, err := conf.Load(c.confPath)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	existing := c.sources
	c.mutex.Unlock()

	for name := range existing {
		if _, ok := cfg.Sources[name]; !ok {
			c.stopSource(name)
		}
	}

	for name, sc := range cfg.Sources {
		if _, ok := existing[name]; ok {
			continue
		}
		if err := c.startSource(name, sc, cfg.CRAverage); err != nil {
			return fmt.Errorf("source '%s': %w", name, err)
		}
	}

	return nil
}

func (c *Core) stopSource(name string) {
	c.mutex.Lock()
	s, ok := c.sources[name]
	if ok {
		delete(c.sources, name)
	}
	c.mutex.Unlock()

	if ok {
		s.cancel()
	}
}

func (c *Core) closeResources() {
	c.mutex.Lock()
	sources := c.sources
	c.sources = nil
	c.mutex.Unlock()

	for _, s := range sources {
		s.cancel()
	}

	if c.metrics != nil {
		c.metrics.Close()
	}
	if c.api != nil {
		c.api.Close()
	}
	if c.confWatcher != nil {
		c.confWatcher.Close()
	}
	if c.logger != nil {
		c.logger.Close()
	}
}
