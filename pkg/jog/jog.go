// Package jog runs back-and-forth step sequences on one axis, the usual
// bench test for a newly wired stepper.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package jog

import (
	"context"
	"fmt"
	"time"

	"geckodrive-go/pkg/errors"
	"geckodrive-go/pkg/gecko"
	"geckodrive-go/pkg/log"
)

// Axes resolves logical axis names. *gecko.Port implements it.
type Axes interface {
	Axis(name string) (gecko.Controller, error)
}

// Move is one jog: Forward steps clockwise then Reverse steps
// counter-clockwise, Repeat times.
type Move struct {
	Axis    string `yaml:"axis"`
	Forward int    `yaml:"forward"`
	Reverse int    `yaml:"reverse"`
	Repeat  int    `yaml:"repeat"`
}

// Validate checks the counts. The axis name is checked when resolved.
func (m Move) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"forward", m.Forward},
		{"reverse", m.Reverse},
		{"repeat", m.Repeat},
	} {
		if f.v < 0 {
			return errors.InvalidArgumentError(f.name+" count", fmt.Sprintf("%d is negative", f.v))
		}
	}
	return nil
}

// Total is the number of steps the move issues.
func (m Move) Total() int {
	return (m.Forward + m.Reverse) * m.Repeat
}

func (m Move) String() string {
	return fmt.Sprintf("%s +%d -%d x%d", m.Axis, m.Forward, m.Reverse, m.Repeat)
}

// Result summarizes what a run actually did.
type Result struct {
	Steps   map[string]int // steps issued per axis
	Elapsed time.Duration
}

func newResult() *Result {
	return &Result{Steps: make(map[string]int)}
}

// Total returns the steps issued over all axes.
func (r *Result) Total() int {
	n := 0
	for _, v := range r.Steps {
		n += v
	}
	return n
}

// Run executes m. Each leg enables the axis, sets the direction, steps and
// disables again. ctx is checked between steps; a cancelled run disables
// the axis and returns ctx.Err(). A hardware error aborts at once.
func Run(ctx context.Context, axes Axes, m Move) (*Result, error) {
	res := newResult()
	start := time.Now()
	err := run(ctx, axes, m, res, log.GetLogger("jog"))
	res.Elapsed = time.Since(start)
	return res, err
}

func run(ctx context.Context, axes Axes, m Move, res *Result, logger *log.Logger) error {
	if err := m.Validate(); err != nil {
		return err
	}
	a, err := axes.Axis(m.Axis)
	if err != nil {
		return err
	}
	name := a.ID().String()

	logger.WithField("axis", name).Infof("jog %d forward, %d back, %d times", m.Forward, m.Reverse, m.Repeat)
	for r := 0; r < m.Repeat; r++ {
		if m.Forward > 0 {
			logger.Debug("clockwise")
			if err := leg(ctx, a, a.DirCW, m.Forward, res); err != nil {
				return err
			}
		}
		if m.Reverse > 0 {
			logger.Debug("counter-clockwise")
			if err := leg(ctx, a, a.DirCCW, m.Reverse, res); err != nil {
				return err
			}
		}
	}
	return nil
}

func leg(ctx context.Context, a gecko.Controller, dir func() error, n int, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.Enable(); err != nil {
		return err
	}
	if err := dir(); err != nil {
		return err
	}
	name := a.ID().String()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			if derr := a.Disable(); derr != nil {
				log.GetLogger("jog").WithError(derr).Warn("disable after cancel failed")
			}
			return err
		}
		if err := a.Step(); err != nil {
			return err
		}
		res.Steps[name]++
	}
	return a.Disable()
}
