// Package interactive provides the gecko-stepper command shell for poking
// at a port by hand.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"geckodrive-go/pkg/gecko"
	"geckodrive-go/pkg/jog"
)

// Shell runs single axis operations typed at a prompt.
type Shell struct {
	port *gecko.Port
	out  io.Writer
	rl   *readline.Instance
}

// New creates a shell reading from the terminal.
func New(port *gecko.Port) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gecko> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{port: port, out: rl.Stdout(), rl: rl}, nil
}

// NewWithWriter creates a shell without a terminal. Commands are fed to
// Exec and output goes to w.
func NewWithWriter(port *gecko.Port, w io.Writer) *Shell {
	return &Shell{port: port, out: w}
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	if s.rl == nil {
		return
	}
	defer s.rl.Close()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}
		if s.Exec(ctx, line) {
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "enable", "en":
		err = s.axisOp(args, gecko.Controller.Enable)
	case "disable", "dis":
		err = s.axisOp(args, gecko.Controller.Disable)
	case "cw":
		err = s.axisOp(args, gecko.Controller.DirCW)
	case "ccw":
		err = s.axisOp(args, gecko.Controller.DirCCW)
	case "rev":
		err = s.axisOp(args, gecko.Controller.DirRev)
	case "step", "s":
		err = s.cmdStep(args)
	case "jog":
		err = s.cmdJog(ctx, args)
	case "state", "st":
		err = s.cmdState(args)
	case "reg":
		err = s.cmdReg()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Geckodrive Commands:
  Axis:
    enable <axis>                  - Set the axis disable bit
    disable <axis>                 - Clear the axis disable bit
    cw <axis> | ccw <axis>         - Set direction
    rev <axis>                     - Toggle direction
    step <axis> [n]                - Issue n step pulses (default 1)
    jog <axis> <fwd> <rev> [rep]   - Step forward then back, rep times

  Inspection:
    state [axis]                   - Decode axis bits (all axes if omitted)
    reg                            - Show the DATA register

  General:
    help                           - Show this help
    quit                           - Exit`)
}

func (s *Shell) axis(args []string) (gecko.Controller, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing axis (x or y)")
	}
	return s.port.Axis(args[0])
}

func (s *Shell) axisOp(args []string, op func(gecko.Controller) error) error {
	a, err := s.axis(args)
	if err != nil {
		return err
	}
	if err := op(a); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

func (s *Shell) cmdStep(args []string) error {
	a, err := s.axis(args)
	if err != nil {
		return err
	}
	n := 1
	if len(args) > 1 {
		if n, err = parseCount("step count", args[1]); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if err := a.Step(); err != nil {
			return fmt.Errorf("step %d of %d: %w", i+1, n, err)
		}
	}
	fmt.Fprintf(s.out, "%d steps\n", n)
	return nil
}

func (s *Shell) cmdJog(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: jog <axis> <fwd> <rev> [repeat]")
	}
	m := jog.Move{Axis: args[0], Repeat: 1}
	var err error
	if m.Forward, err = parseCount("forward count", args[1]); err != nil {
		return err
	}
	if m.Reverse, err = parseCount("reverse count", args[2]); err != nil {
		return err
	}
	if len(args) > 3 {
		if m.Repeat, err = parseCount("repeat", args[3]); err != nil {
			return err
		}
	}
	res, err := jog.Run(ctx, s.port, m)
	if res != nil {
		fmt.Fprintf(s.out, "%d steps in %v\n", res.Total(), res.Elapsed)
	}
	return err
}

func (s *Shell) cmdState(args []string) error {
	ids := gecko.Axes
	if len(args) > 0 {
		id, err := gecko.ParseAxis(args[0])
		if err != nil {
			return err
		}
		ids = []gecko.AxisID{id}
	}
	for _, id := range ids {
		a, err := s.port.AxisByID(id)
		if err != nil {
			return err
		}
		st, err := a.State()
		if err != nil {
			return err
		}
		dir := "cw"
		if st.CCW {
			dir = "ccw"
		}
		fmt.Fprintf(s.out, "%s: enabled=%v dir=%s step=%v\n", id, st.Enabled, dir, boolBit(st.StepHigh))
	}
	return nil
}

func (s *Shell) cmdReg() error {
	b, err := s.port.Register()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "DATA = 0x%02x (%08b)\n", b, b)
	return nil
}

func parseCount(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
