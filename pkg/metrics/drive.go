// Driver metrics for the Geckodrive parallel port
//
// DriveMetrics counts register traffic and axis activity. It satisfies the
// port observer interface, so every operation is recorded as it happens.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

// DriveMetrics holds the driver's metrics and the registry serving them.
type DriveMetrics struct {
	registry *Registry

	RegisterReads    *Counter
	RegisterWrites   *Counter
	Steps            *Counter
	DirectionChanges *Counter
	AxisEnabled      *Gauge
	HardwareErrors   *Counter
	LastRegister     *Gauge
}

// NewDriveMetrics creates and registers the driver metrics.
func NewDriveMetrics() *DriveMetrics {
	dm := &DriveMetrics{
		registry: NewRegistry(),

		RegisterReads:    NewCounter("gecko_register_reads_total", "DATA register reads"),
		RegisterWrites:   NewCounter("gecko_register_writes_total", "DATA register writes"),
		Steps:            NewCounter("gecko_steps_total", "Step pulses issued per axis"),
		DirectionChanges: NewCounter("gecko_direction_changes_total", "Direction bit changes per axis"),
		AxisEnabled:      NewGauge("gecko_axis_enabled", "Whether the axis disable bit is set"),
		HardwareErrors:   NewCounter("gecko_hardware_errors_total", "Failed register accesses per operation"),
		LastRegister:     NewGauge("gecko_register_value", "Last value written to the DATA register"),
	}
	for _, m := range []Metric{
		dm.RegisterReads, dm.RegisterWrites, dm.Steps, dm.DirectionChanges,
		dm.AxisEnabled, dm.HardwareErrors, dm.LastRegister,
	} {
		dm.registry.MustRegister(m)
	}
	return dm
}

// Registry returns the registry holding the driver metrics.
func (dm *DriveMetrics) Registry() *Registry {
	return dm.registry
}

// Gather renders all driver metrics in Prometheus text format.
func (dm *DriveMetrics) Gather() string {
	return dm.registry.Gather()
}

func (dm *DriveMetrics) RegisterRead() {
	dm.RegisterReads.Inc(nil)
}

func (dm *DriveMetrics) RegisterWrite(b byte) {
	dm.RegisterWrites.Inc(nil)
	dm.LastRegister.Set(nil, float64(b))
}

func (dm *DriveMetrics) StepIssued(axis string) {
	dm.Steps.Inc(Labels{"axis": axis})
}

func (dm *DriveMetrics) DirectionChanged(axis string) {
	dm.DirectionChanges.Inc(Labels{"axis": axis})
}

func (dm *DriveMetrics) EnableChanged(axis string, enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	dm.AxisEnabled.Set(Labels{"axis": axis}, v)
}

func (dm *DriveMetrics) HardwareFault(axis, op string) {
	dm.HardwareErrors.Inc(Labels{"axis": axis, "op": op})
}
