// Axis bit protocol for Geckodrive step/direction drivers
//
// Each axis owns three bits of the shared DATA register: direction, step
// and disable. Every operation re-reads the register, changes only the
// owning axis's bits, and holds the mandated delay after the write.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gecko

import (
	"fmt"
	"strings"
	"time"

	"geckodrive-go/pkg/errors"
)

// AxisID identifies one of the fixed hardware axes.
type AxisID int

const (
	AxisX AxisID = iota
	AxisY

	numAxes
)

// Axes lists every supported axis in wiring order.
var Axes = []AxisID{AxisX, AxisY}

// String returns the logical axis name ("x", "y").
func (id AxisID) String() string {
	switch id {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return fmt.Sprintf("axis(%d)", int(id))
	}
}

// Valid reports whether id is a supported axis.
func (id AxisID) Valid() bool {
	return id >= AxisX && id < numAxes
}

// ParseAxis maps a logical axis name to its AxisID.
func ParseAxis(name string) (AxisID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	default:
		return 0, errors.UnknownAxisError(name)
	}
}

// Bits holds the bit positions an axis owns in the DATA register.
type Bits struct {
	Dir     uint8
	Step    uint8
	Disable uint8
}

func (b Bits) dirMask() byte     { return 1 << b.Dir }
func (b Bits) stepMask() byte    { return 1 << b.Step }
func (b Bits) disableMask() byte { return 1 << b.Disable }

// Mask returns every register bit owned by the axis.
func (b Bits) Mask() byte {
	return b.dirMask() | b.stepMask() | b.disableMask()
}

// axisBits is the pin wiring of the G251 breakout: two groups of three
// consecutive DATA bits. It is a hardware contract and never changes.
var axisBits = [numAxes]Bits{
	AxisX: {Dir: 0, Step: 1, Disable: 2},
	AxisY: {Dir: 3, Step: 4, Disable: 5},
}

// BitsFor returns the fixed bit assignment of an axis.
func BitsFor(id AxisID) (Bits, error) {
	if !id.Valid() {
		return Bits{}, errors.UnknownAxisError(id.String())
	}
	return axisBits[id], nil
}

// validateBits checks that every assignment uses distinct bits inside one
// byte and that no two axes share a bit.
func validateBits(table []Bits) error {
	var used byte
	for i, b := range table {
		if b.Dir > 7 || b.Step > 7 || b.Disable > 7 {
			return fmt.Errorf("gecko: axis %d: bit position out of range", i)
		}
		if b.Dir == b.Step || b.Dir == b.Disable || b.Step == b.Disable {
			return fmt.Errorf("gecko: axis %d: duplicate bit position", i)
		}
		if used&b.Mask() != 0 {
			return fmt.Errorf("gecko: axis %d: bits overlap another axis", i)
		}
		used |= b.Mask()
	}
	return nil
}

// Timing holds the per-axis minimum delays.
type Timing struct {
	// StepHalfPeriod is how long the step bit holds each level of a pulse.
	StepHalfPeriod time.Duration
	// DirSettle is the wait after a direction change.
	DirSettle time.Duration
}

// DefaultTiming is 10% over the G251 minimum step pulse.
func DefaultTiming() Timing {
	return Timing{
		StepHalfPeriod: 83 * time.Microsecond,
		DirSettle:      0,
	}
}

// Validate rejects negative delays.
func (t Timing) Validate() error {
	if t.StepHalfPeriod < 0 {
		return errors.InvalidArgumentError("step half-period", "must not be negative")
	}
	if t.DirSettle < 0 {
		return errors.InvalidArgumentError("direction settle delay", "must not be negative")
	}
	return nil
}

// Controller is the operation set common to every axis.
type Controller interface {
	ID() AxisID
	Bits() Bits
	Timing() Timing

	Enable() error
	Disable() error
	Step() error
	DirCW() error
	DirCCW() error
	DirRev() error
}

// AxisState is the axis view of one register sample.
type AxisState struct {
	Enabled  bool // disable bit set
	CCW      bool // direction bit set
	StepHigh bool
}

// Axis drives one axis through its owning Port.
type Axis struct {
	id     AxisID
	bits   Bits
	timing Timing
	port   *Port
}

var _ Controller = (*Axis)(nil)

// ID returns the axis identifier.
func (a *Axis) ID() AxisID { return a.id }

// Bits returns the fixed bit assignment.
func (a *Axis) Bits() Bits { return a.bits }

// Timing returns the configured delays.
func (a *Axis) Timing() Timing { return a.timing }

// Enable sets the disable bit. The polarity matches existing G251 wiring,
// where the line is inverted downstream.
func (a *Axis) Enable() error {
	return a.port.cycle(a, "enable", func() error {
		b, err := a.read("enable")
		if err != nil {
			return err
		}
		if err := a.write("enable", b|a.bits.disableMask()); err != nil {
			return err
		}
		a.port.obs.EnableChanged(a.id.String(), true)
		return nil
	})
}

// Disable clears the disable bit.
func (a *Axis) Disable() error {
	return a.port.cycle(a, "disable", func() error {
		b, err := a.read("disable")
		if err != nil {
			return err
		}
		if err := a.write("disable", b&^a.bits.disableMask()); err != nil {
			return err
		}
		a.port.obs.EnableChanged(a.id.String(), false)
		return nil
	})
}

// Step issues one pulse. The driver steps on the rising edge, so a step
// bit that is already high is first driven low for a half-period. The bit
// is always high on return and has held that level for a half-period.
func (a *Axis) Step() error {
	return a.port.cycle(a, "step", func() error {
		b, err := a.read("step")
		if err != nil {
			return err
		}
		mask := a.bits.stepMask()

		if b&mask != 0 {
			b &^= mask
			if err := a.write("step", b); err != nil {
				return err
			}
			a.port.sleep(a.timing.StepHalfPeriod)
		}

		b |= mask
		if err := a.write("step", b); err != nil {
			return err
		}
		a.port.sleep(a.timing.StepHalfPeriod)
		a.port.obs.StepIssued(a.id.String())
		return nil
	})
}

// Steps issues n pulses, stopping at the first failure.
func (a *Axis) Steps(n int) error {
	if n < 0 {
		return errors.InvalidArgumentError("step count", fmt.Sprintf("%d is negative", n))
	}
	for i := 0; i < n; i++ {
		if err := a.Step(); err != nil {
			return fmt.Errorf("step %d of %d: %w", i+1, n, err)
		}
	}
	return nil
}

// DirCW clears the direction bit if it is set.
func (a *Axis) DirCW() error {
	return a.setDir("dir_cw", false)
}

// DirCCW sets the direction bit if it is clear.
func (a *Axis) DirCCW() error {
	return a.setDir("dir_ccw", true)
}

func (a *Axis) setDir(op string, ccw bool) error {
	return a.port.cycle(a, op, func() error {
		b, err := a.read(op)
		if err != nil {
			return err
		}
		mask := a.bits.dirMask()
		if (b&mask != 0) == ccw {
			return nil
		}
		if err := a.write(op, b^mask); err != nil {
			return err
		}
		a.port.sleep(a.timing.DirSettle)
		a.port.obs.DirectionChanged(a.id.String())
		return nil
	})
}

// DirRev toggles the direction bit unconditionally.
func (a *Axis) DirRev() error {
	return a.port.cycle(a, "dir_rev", func() error {
		b, err := a.read("dir_rev")
		if err != nil {
			return err
		}
		if err := a.write("dir_rev", b^a.bits.dirMask()); err != nil {
			return err
		}
		a.port.sleep(a.timing.DirSettle)
		a.port.obs.DirectionChanged(a.id.String())
		return nil
	})
}

// State samples the register and decodes this axis's bits.
func (a *Axis) State() (AxisState, error) {
	var st AxisState
	err := a.port.cycle(a, "state", func() error {
		b, err := a.read("state")
		if err != nil {
			return err
		}
		st = AxisState{
			Enabled:  b&a.bits.disableMask() != 0,
			CCW:      b&a.bits.dirMask() != 0,
			StepHigh: b&a.bits.stepMask() != 0,
		}
		return nil
	})
	return st, err
}

func (a *Axis) read(op string) (byte, error) {
	b, err := a.port.reg.Read()
	if err != nil {
		return 0, errors.HardwareAccessError(a.id.String(), op, err)
	}
	a.port.obs.RegisterRead()
	return b, nil
}

func (a *Axis) write(op string, b byte) error {
	if err := a.port.reg.Write(b); err != nil {
		return errors.HardwareAccessError(a.id.String(), op, err)
	}
	a.port.obs.RegisterWrite(b)
	return nil
}
