// gecko-stepper drives Geckodrive step/direction stepper drivers wired to a
// PC parallel port.
//
// Usage:
//
//	gecko-stepper <device> <axis> <nsteps> <nsteps back> <repeat>
//	gecko-stepper [options]
//
// Options:
//
//	-device string     ppdev node (default /dev/parport0)
//	-axis string       Axis to jog (x or y)
//	-fwd int           Clockwise steps per repeat
//	-rev int           Counter-clockwise steps per repeat
//	-repeat int        Number of repeats (default 1)
//	-config string     INI configuration file
//	-program string    YAML jog program
//	-sim               Use a simulated register instead of the device
//	-interactive       Open the command shell
//	-metrics string    Serve Prometheus metrics on this address
//	-loglevel string   DEBUG, INFO, WARN or ERROR
//	-logformat string  text or json
//	-logfile string    Log file path (default: stderr)
//
// Examples:
//
//	# Rotate 200 steps clockwise then 400 back, 6 times
//	gecko-stepper /dev/parport0 x 200 400 6
//
//	# Run a program against the simulator with metrics
//	gecko-stepper -sim -program bench.yaml -metrics :9100
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"geckodrive-go/cmd/gecko-stepper/interactive"
	"geckodrive-go/pkg/config"
	"geckodrive-go/pkg/gecko"
	"geckodrive-go/pkg/jog"
	"geckodrive-go/pkg/log"
	"geckodrive-go/pkg/metrics"
	"geckodrive-go/pkg/parport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	device      string
	axis        string
	fwd         int
	rev         int
	repeat      int
	configFile  string
	program     string
	sim         bool
	interactive bool
	metricsAddr string
	metricsUser string
	metricsPass string
	logLevel    string
	logFormat   string
	logFile     string

	set map[string]bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("gecko-stepper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.device, "device", config.DefaultDevice, "ppdev node")
	fs.StringVar(&o.axis, "axis", "", "Axis to jog (x or y)")
	fs.IntVar(&o.fwd, "fwd", 0, "Clockwise steps per repeat")
	fs.IntVar(&o.rev, "rev", 0, "Counter-clockwise steps per repeat")
	fs.IntVar(&o.repeat, "repeat", 1, "Number of repeats")
	fs.StringVar(&o.configFile, "config", "", "INI configuration file")
	fs.StringVar(&o.program, "program", "", "YAML jog program")
	fs.BoolVar(&o.sim, "sim", false, "Use a simulated register instead of the device")
	fs.BoolVar(&o.interactive, "interactive", false, "Open the command shell")
	fs.StringVar(&o.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&o.logLevel, "loglevel", "", "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&o.logFormat, "logformat", "", "text or json")
	fs.StringVar(&o.logFile, "logfile", "", "Log file path (default: stderr)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: gecko-stepper <device> <axis> <nsteps> <nsteps back> <repeat>")
		fmt.Fprintln(stderr, "       gecko-stepper [options]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 5:
		o.device, o.axis = rest[0], rest[1]
		for i, dst := range []*int{&o.fwd, &o.rev, &o.repeat} {
			n, err := strconv.Atoi(rest[2+i])
			if err != nil {
				return nil, fmt.Errorf("invalid count %q", rest[2+i])
			}
			*dst = n
		}
		for _, name := range []string{"device", "axis", "fwd", "rev", "repeat"} {
			o.set[name] = true
		}
	default:
		fs.Usage()
		return nil, fmt.Errorf("expected 5 positional arguments, got %d", len(rest))
	}
	return o, nil
}

// setupLogging configures the default logger from env, then flags.
func setupLogging(o *options, stderr io.Writer) (io.Closer, error) {
	logger := log.New("gecko")
	logger.SetWriter(stderr)
	log.ConfigureFromEnv(logger)

	if o.logLevel != "" {
		logger.SetLevel(log.ParseLevel(o.logLevel))
	}
	if o.logFormat != "" {
		logger.SetFormat(log.ParseFormat(o.logFormat))
	}

	var closer io.Closer
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.SetWriter(f)
		logger.SetColorize(false)
		closer = f
	}
	log.SetDefaultLogger(logger)
	return closer, nil
}

func loadConfig(o *options) (*config.DriveConfig, error) {
	names := make([]string, len(gecko.Axes))
	for i, id := range gecko.Axes {
		names[i] = id.String()
	}
	if o.configFile == "" {
		return config.DefaultDriveConfig(names), nil
	}
	dc, err := config.ParseDriveConfig(o.configFile, names)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", o.configFile, err)
	}

	// command line wins over the file
	if !o.set["device"] {
		o.device = dc.Device
	}
	if !o.set["sim"] {
		o.sim = dc.Simulate
	}
	if dc.Metrics != nil {
		if !o.set["metrics"] {
			o.metricsAddr = dc.Metrics.Address
		}
		o.metricsUser, o.metricsPass = dc.Metrics.Username, dc.Metrics.Password
	}
	if dc.Jog != nil && !o.set["axis"] {
		o.axis = dc.Jog.Axis
		if !o.set["fwd"] {
			o.fwd = dc.Jog.Forward
		}
		if !o.set["rev"] {
			o.rev = dc.Jog.Reverse
		}
		if !o.set["repeat"] {
			o.repeat = dc.Jog.Repeat
		}
	}
	return dc, nil
}

func portOptions(dc *config.DriveConfig, obs gecko.Observer) []gecko.Option {
	opts := []gecko.Option{gecko.WithLogger(log.GetLogger("port"))}
	for _, id := range gecko.Axes {
		if ac, ok := dc.Axes[id.String()]; ok {
			opts = append(opts, gecko.WithTiming(id, gecko.Timing{
				StepHalfPeriod: ac.StepDelay,
				DirSettle:      ac.DirDelay,
			}))
		}
	}
	if obs != nil {
		opts = append(opts, gecko.WithObserver(obs))
	}
	return opts
}

func metricsServerConfig(o *options) metrics.ServerConfig {
	cfg := metrics.DefaultServerConfig()
	cfg.Address = o.metricsAddr
	cfg.Username, cfg.Password = o.metricsUser, o.metricsPass
	return cfg
}

func openPort(o *options, opts []gecko.Option) (*gecko.Port, error) {
	if o.sim {
		return gecko.NewPort(parport.NewSim(0), opts...)
	}
	return gecko.Open(o.device, opts...)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	logCloser, err := setupLogging(o, stderr)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger := log.GetLogger("main")

	dc, err := loadConfig(o)
	if err != nil {
		return err
	}

	var prog *jog.Program
	var move *jog.Move
	switch {
	case o.program != "":
		if prog, err = jog.LoadProgram(o.program); err != nil {
			return err
		}
	case o.axis != "":
		if _, err := gecko.ParseAxis(o.axis); err != nil {
			return err
		}
		move = &jog.Move{Axis: o.axis, Forward: o.fwd, Reverse: o.rev, Repeat: o.repeat}
		if err := move.Validate(); err != nil {
			return err
		}
	case !o.interactive:
		return fmt.Errorf("nothing to do: give an axis, a -program or -interactive")
	}

	var dm *metrics.DriveMetrics
	if o.metricsAddr != "" {
		dm = metrics.NewDriveMetrics()
		srv := metrics.NewServer(dm, metricsServerConfig(o))
		if err := srv.Listen(); err != nil {
			return err
		}
		go func() {
			if err := srv.Serve(); err != nil {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.WithField("addr", srv.Addr()).Info("serving metrics")
	}

	var obs gecko.Observer
	if dm != nil {
		obs = dm
	}
	port, err := openPort(o, portOptions(dc, obs))
	if err != nil {
		return err
	}
	defer port.Close()

	device := o.device
	if o.sim {
		device = "simulator"
	}
	logger.WithField("device", device).Infof("config: %s", dc)

	var res *jog.Result
	switch {
	case prog != nil:
		res, err = jog.RunProgram(ctx, port, prog)
	case move != nil:
		fmt.Fprintf(stdout, "steps = %d, %d\n", move.Forward, move.Reverse)
		res, err = jog.Run(ctx, port, *move)
	}
	if res != nil {
		printResult(stdout, res)
	}
	if err != nil {
		return err
	}

	if o.interactive {
		sh, err := interactive.New(port)
		if err != nil {
			return err
		}
		sh.Run(ctx)
	}
	return nil
}

func printResult(w io.Writer, res *jog.Result) {
	for _, id := range gecko.Axes {
		if n, ok := res.Steps[id.String()]; ok {
			fmt.Fprintf(w, "%s: %d steps\n", id, n)
		}
	}
	fmt.Fprintf(w, "elapsed %v\n", res.Elapsed.Round(time.Millisecond))
}
