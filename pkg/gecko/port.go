// Port owns the shared DATA register and one Axis per supported axis.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gecko

import (
	"fmt"
	"io"
	"sync"
	"time"

	"geckodrive-go/pkg/errors"
	"geckodrive-go/pkg/log"
	"geckodrive-go/pkg/parport"
)

// Sleeper blocks for at least d. Axis delays go through it.
type Sleeper func(d time.Duration)

// Sleep is the default Sleeper. Zero and negative delays return at once.
func Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Observer receives register and axis events. Calls are made while the
// port lock is held and must not call back into the Port.
type Observer interface {
	RegisterRead()
	RegisterWrite(value byte)
	StepIssued(axis string)
	DirectionChanged(axis string)
	EnableChanged(axis string, enabled bool)
	HardwareFault(axis, op string)
}

type nopObserver struct{}

func (nopObserver) RegisterRead()                {}
func (nopObserver) RegisterWrite(byte)           {}
func (nopObserver) StepIssued(string)            {}
func (nopObserver) DirectionChanged(string)      {}
func (nopObserver) EnableChanged(string, bool)   {}
func (nopObserver) HardwareFault(string, string) {}

// device is what Open needs from a parallel port node.
type device interface {
	parport.Register
	Claim() error
	Close() error
}

var openDevice = func(path string) (device, error) {
	return parport.Open(path)
}

// Option configures a Port.
type Option func(*options)

type options struct {
	timing   [numAxes]Timing
	sleep    Sleeper
	observer Observer
	logger   *log.Logger
}

// WithTiming overrides the delays of one axis.
func WithTiming(id AxisID, t Timing) Option {
	return func(o *options) {
		if id.Valid() {
			o.timing[id] = t
		}
	}
}

// WithSleeper replaces the delay primitive (tests, simulation).
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// WithObserver attaches an event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger used for port lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		sleep:    Sleep,
		observer: nopObserver{},
		logger:   log.GetLogger("port"),
	}
	for _, id := range Axes {
		o.timing[id] = DefaultTiming()
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sleep == nil {
		o.sleep = Sleep
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}
	return o
}

// Port is the controller registry for one parallel port.
//
// Every axis operation runs under one mutex held for the full
// read-modify-write-delay cycle, so cycles never interleave.
type Port struct {
	mu     sync.Mutex
	reg    parport.Register
	closer io.Closer
	device string
	closed bool

	axes  [numAxes]*Axis
	sleep Sleeper
	obs   Observer
	log   *log.Logger
}

// Open opens and claims the device at path, zeroes the DATA register and
// builds every axis. On failure nothing is left open.
func Open(path string, opts ...Option) (*Port, error) {
	o := buildOptions(opts)
	if err := validateTimings(o.timing); err != nil {
		return nil, err
	}

	dev, err := openDevice(path)
	if err != nil {
		return nil, errors.DeviceOpenError(path, err)
	}
	if err := dev.Claim(); err != nil {
		dev.Close()
		return nil, errors.DeviceClaimError(path, err)
	}

	p, err := newPort(dev, path, o)
	if err != nil {
		dev.Close()
		return nil, err
	}
	p.closer = dev
	p.log.WithField("device", path).Debug("port claimed")
	return p, nil
}

// NewPort builds a Port over an already-claimed register, such as a
// parport.Sim. The register is zeroed first.
func NewPort(reg parport.Register, opts ...Option) (*Port, error) {
	o := buildOptions(opts)
	if err := validateTimings(o.timing); err != nil {
		return nil, err
	}
	p, err := newPort(reg, "", o)
	if err != nil {
		return nil, err
	}
	if c, ok := reg.(io.Closer); ok {
		p.closer = c
	}
	return p, nil
}

func validateTimings(t [numAxes]Timing) error {
	for _, id := range Axes {
		if err := t[id].Validate(); err != nil {
			return fmt.Errorf("axis %s: %w", id, err)
		}
	}
	return nil
}

func newPort(reg parport.Register, path string, o options) (*Port, error) {
	if err := validateBits(axisBits[:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrRegisterInit, "invalid axis wiring").SetDevice(path)
	}
	if err := reg.Write(0); err != nil {
		return nil, errors.RegisterInitError(path, err)
	}

	p := &Port{
		reg:    reg,
		device: path,
		sleep:  o.sleep,
		obs:    o.observer,
		log:    o.logger,
	}
	p.obs.RegisterWrite(0)
	for _, id := range Axes {
		p.axes[id] = &Axis{
			id:     id,
			bits:   axisBits[id],
			timing: o.timing[id],
			port:   p,
		}
	}
	return p, nil
}

// Device returns the device path, or "" for a port built with NewPort.
func (p *Port) Device() string {
	return p.device
}

// Axis returns the controller for a logical axis name.
func (p *Port) Axis(name string) (Controller, error) {
	id, err := ParseAxis(name)
	if err != nil {
		return nil, err
	}
	return p.axes[id], nil
}

// AxisByID returns the concrete controller for id.
func (p *Port) AxisByID(id AxisID) (*Axis, error) {
	if !id.Valid() {
		return nil, errors.UnknownAxisError(id.String())
	}
	return p.axes[id], nil
}

// Register samples the whole DATA register.
func (p *Port) Register() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.HardwareAccessError("", "read", parport.ErrClosed)
	}
	b, err := p.reg.Read()
	if err != nil {
		p.obs.HardwareFault("", "read")
		return 0, errors.HardwareAccessError("", "read", err)
	}
	p.obs.RegisterRead()
	return b, nil
}

// Close releases the underlying device. Further axis operations fail with
// a hardware access error. Closing twice is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer == nil {
		return nil
	}
	if err := p.closer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrHardwareAccess, "release failed").SetDevice(p.device)
	}
	p.log.WithField("device", p.device).Debug("port released")
	return nil
}

func (p *Port) cycle(a *Axis, op string, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.HardwareAccessError(a.id.String(), op, parport.ErrClosed)
	}
	if err := fn(); err != nil {
		p.obs.HardwareFault(a.id.String(), op)
		return err
	}
	return nil
}
