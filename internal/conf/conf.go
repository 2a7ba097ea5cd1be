// Package conf holds the configuration of the daemon: log setup, the
// default clock parameters applied to every source, and the list of sources
// to instantiate.
package conf

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/meridianvideo/inputclockd/internal/confenv"
	"github.com/meridianvideo/inputclockd/internal/logger"
)

var sourceNameRegexp = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Source describes one MPEG-TS PCR-driven clock instance.
type Source struct {
	// Address is the udp://host:port URL the demuxer reads MPEG-TS packets
	// from.
	Address string `yaml:"address"`

	// PID is the PID whose PCR is tracked. 0 accepts a PCR from any PID;
	// the PMT is not consulted.
	PID uint16 `yaml:"pid"`

	// Rate overrides Conf.Rate for this source alone. 0 means "use the
	// default".
	Rate int64 `yaml:"rate"`

	// PTSDelay overrides Conf.PTSDelay for this source alone.
	PTSDelay time.Duration `yaml:"ptsDelay"`
}

// Conf is the root configuration structure, loaded from YAML and then
// overlaid with environment variables under the ICLOCK_ prefix.
type Conf struct {
	LogLevel        string   `yaml:"logLevel"`
	LogDestinations []string `yaml:"logDestinations"`
	LogFile         string   `yaml:"logFile"`

	// Rate is the default playback rate applied to every source's clock, in
	// clock.RateDefault units (1000 == 1.0x).
	Rate int64 `yaml:"rate"`

	// PTSDelay is the default minimum end-to-end delay budget handed to
	// clock.SetJitter for every source.
	PTSDelay time.Duration `yaml:"ptsDelay"`

	// CRAverage is the default IIR divider for the drift estimator.
	CRAverage int64 `yaml:"crAverage"`

	APIAddress     string `yaml:"apiAddress"`
	MetricsAddress string `yaml:"metricsAddress"`

	Sources map[string]*Source `yaml:"sources"`

	logLevelParsed        logger.Level
	logDestinationsParsed map[logger.Destination]struct{}
}

// LogLevelParsed returns the parsed log level. Valid only after Load.
func (c *Conf) LogLevelParsed() logger.Level { return c.logLevelParsed }

// LogDestinationsParsed returns the parsed destination set. Valid only
// after Load.
func (c *Conf) LogDestinationsParsed() map[logger.Destination]struct{} {
	return c.logDestinationsParsed
}

// Load reads fpath (yaml), overlays the ICLOCK_ environment, fills in
// defaults, and validates the result. fpath == "" skips the file read
// entirely and starts from an empty Conf.
func Load(fpath string) (*Conf, error) {
	conf := &Conf{}

	if fpath != "" {
		if err := loadFromFile(fpath, conf); err != nil {
			return nil, err
		}
	}

	if err := confenv.Load("ICLOCK", conf); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := conf.applyDefaultsAndValidate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func loadFromFile(fpath string, conf *Conf) error {
	f, err := os.Open(fpath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	return decode(f, conf)
}

func decode(r io.Reader, conf *Conf) error {
	if err := yaml.NewDecoder(r).Decode(conf); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Conf) applyDefaultsAndValidate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogLevel {
	case "debug":
		c.logLevelParsed = logger.Debug
	case "info":
		c.logLevelParsed = logger.Info
	case "warn":
		c.logLevelParsed = logger.Warn
	case "error":
		c.logLevelParsed = logger.Error
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}

	if len(c.LogDestinations) == 0 {
		c.LogDestinations = []string{"stdout"}
	}
	c.logDestinationsParsed = make(map[logger.Destination]struct{})
	for _, d := range c.LogDestinations {
		switch d {
		case "stdout":
			c.logDestinationsParsed[logger.DestinationStdout] = struct{}{}
		case "file":
			c.logDestinationsParsed[logger.DestinationFile] = struct{}{}
		case "syslog":
			c.logDestinationsParsed[logger.DestinationSyslog] = struct{}{}
		default:
			return fmt.Errorf("unsupported log destination: %s", d)
		}
	}
	if _, ok := c.logDestinationsParsed[logger.DestinationFile]; ok && c.LogFile == "" {
		c.LogFile = "inputclockd.log"
	}

	if c.Rate == 0 {
		c.Rate = 1000
	}
	if c.PTSDelay == 0 {
		c.PTSDelay = 500 * time.Millisecond
	}
	if c.CRAverage == 0 {
		c.CRAverage = 10
	}

	if c.APIAddress == "" {
		c.APIAddress = "127.0.0.1:9997"
	}
	if c.MetricsAddress == "" {
		c.MetricsAddress = "127.0.0.1:9998"
	}

	for name, s := range c.Sources {
		if !sourceNameRegexp.MatchString(name) {
			return fmt.Errorf("invalid source name: '%s'", name)
		}
		if s.Address == "" {
			return fmt.Errorf("source '%s': address is required", name)
		}
		if s.Rate == 0 {
			s.Rate = c.Rate
		}
		if s.PTSDelay == 0 {
			s.PTSDelay = c.PTSDelay
		}
	}

	return nil
}
