package config

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultDevice is the first ppdev node.
const DefaultDevice = "/dev/parport0"

// Default per-axis delays, in microseconds.
const (
	DefaultStepDelayUS = 83.0
	DefaultDirDelayUS  = 0.0

	// MaxDelayUS caps either delay at one minute.
	MaxDelayUS = 60e6
)

// AxisConfig holds the timing of one [axis <name>] section.
type AxisConfig struct {
	Name      string
	StepDelay time.Duration // step half-period
	DirDelay  time.Duration // direction settle delay
}

// JogConfig holds defaults for a jog run from the [jog] section.
type JogConfig struct {
	Axis    string
	Forward int
	Reverse int
	Repeat  int
}

// MetricsConfig holds the [metrics] section.
type MetricsConfig struct {
	Address  string
	Username string
	Password string
}

// DriveConfig is the full driver configuration.
//
//	[parport]
//	device: /dev/parport0
//	simulate: false
//
//	[axis x]
//	step_delay_us: 83
//	dir_delay_us: 0
//
//	[jog]
//	axis: x
//	forward: 200
//	reverse: 400
//	repeat: 6
//
//	[metrics]
//	address: 127.0.0.1:9100
//	username: bench
//	password: secret
//
// Bit assignments are wiring, not configuration.
type DriveConfig struct {
	Device   string
	Simulate bool
	Axes     map[string]AxisConfig
	Jog      *JogConfig
	Metrics  *MetricsConfig
}

// DefaultDriveConfig returns the configuration used without a file.
func DefaultDriveConfig(axes []string) *DriveConfig {
	dc := &DriveConfig{
		Device: DefaultDevice,
		Axes:   make(map[string]AxisConfig, len(axes)),
	}
	for _, name := range axes {
		dc.Axes[name] = AxisConfig{
			Name:      name,
			StepDelay: microseconds(DefaultStepDelayUS),
			DirDelay:  microseconds(DefaultDirDelayUS),
		}
	}
	return dc
}

// ParseDriveConfig loads path and extracts the driver configuration for
// the given axis names. Unknown sections and options are errors.
func ParseDriveConfig(path string, axes []string) (*DriveConfig, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ExtractDriveConfig(c, axes)
}

// ParseDriveConfigString is ParseDriveConfig for in-memory text.
func ParseDriveConfigString(data string, axes []string) (*DriveConfig, error) {
	c, err := LoadString(data)
	if err != nil {
		return nil, err
	}
	return ExtractDriveConfig(c, axes)
}

// ExtractDriveConfig reads the driver sections out of a loaded Config.
func ExtractDriveConfig(c *Config, axes []string) (*DriveConfig, error) {
	dc := DefaultDriveConfig(axes)

	if sec := c.GetSectionOptional("parport"); sec != nil {
		dev, err := sec.Get("device", DefaultDevice)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(dev) == "" {
			return nil, ErrInvalidValue(sec.GetName(), "device", dev, "device path")
		}
		dc.Device = dev
		if dc.Simulate, err = sec.GetBool("simulate", false); err != nil {
			return nil, err
		}
	}

	minDelay, maxDelay := 0.0, MaxDelayUS
	bounds := FloatBounds{MinVal: &minDelay, MaxVal: &maxDelay}
	for _, name := range axes {
		sec := c.GetSectionOptional("axis " + name)
		if sec == nil {
			continue
		}
		step, err := sec.GetFloatWithBounds("step_delay_us", bounds, DefaultStepDelayUS)
		if err != nil {
			return nil, err
		}
		dir, err := sec.GetFloatWithBounds("dir_delay_us", bounds, DefaultDirDelayUS)
		if err != nil {
			return nil, err
		}
		dc.Axes[name] = AxisConfig{
			Name:      name,
			StepDelay: microseconds(step),
			DirDelay:  microseconds(dir),
		}
	}

	if sec := c.GetSectionOptional("jog"); sec != nil {
		jog, err := extractJog(sec, axes)
		if err != nil {
			return nil, err
		}
		dc.Jog = jog
	}

	if sec := c.GetSectionOptional("metrics"); sec != nil {
		m, err := extractMetrics(sec)
		if err != nil {
			return nil, err
		}
		dc.Metrics = m
	}

	if err := c.CheckUnused(); err != nil {
		return nil, err
	}
	return dc, nil
}

func extractJog(sec *Section, axes []string) (*JogConfig, error) {
	axis, err := sec.GetChoice("axis", axes)
	if err != nil {
		return nil, err
	}
	jog := &JogConfig{Axis: axis}
	for _, f := range []struct {
		option string
		dst    *int
		def    int
	}{
		{"forward", &jog.Forward, 0},
		{"reverse", &jog.Reverse, 0},
		{"repeat", &jog.Repeat, 1},
	} {
		v, err := sec.GetInt(f.option, f.def)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, ErrOutOfRange(sec.GetName(), f.option, float64(v), "is negative")
		}
		*f.dst = v
	}
	return jog, nil
}

func extractMetrics(sec *Section) (*MetricsConfig, error) {
	m := &MetricsConfig{}
	for _, f := range []struct {
		option string
		dst    *string
	}{
		{"address", &m.Address},
		{"username", &m.Username},
		{"password", &m.Password},
	} {
		v, err := sec.Get(f.option, "")
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if m.Address == "" {
		return nil, ErrMissingOption(sec.GetName(), "address")
	}
	if (m.Username == "") != (m.Password == "") {
		return nil, NewConfigError(sec.GetName(), "", "username and password must be given together")
	}
	return m, nil
}

func microseconds(us float64) time.Duration {
	return time.Duration(math.Round(us * float64(time.Microsecond)))
}

// String renders the configuration for startup logs.
func (dc *DriveConfig) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "device=%s simulate=%v", dc.Device, dc.Simulate)
	for _, name := range sortedKeys(dc.Axes) {
		a := dc.Axes[name]
		fmt.Fprintf(&sb, " %s{step=%v dir=%v}", name, a.StepDelay, a.DirDelay)
	}
	return sb.String()
}

func sortedKeys(m map[string]AxisConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
