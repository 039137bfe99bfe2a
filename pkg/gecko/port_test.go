package gecko

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geckodrive-go/pkg/errors"
	"geckodrive-go/pkg/log"
	"geckodrive-go/pkg/parport"
)

// fakeDevice is a claimable Sim for exercising Open.
type fakeDevice struct {
	*parport.Sim
	claimErr error
	closed   int
}

func (f *fakeDevice) Claim() error { return f.claimErr }
func (f *fakeDevice) Close() error { f.closed++; return nil }

func withFakeDevice(t *testing.T, dev *fakeDevice, openErr error) {
	t.Helper()
	orig := openDevice
	openDevice = func(string) (device, error) {
		if openErr != nil {
			return nil, openErr
		}
		return dev, nil
	}
	t.Cleanup(func() { openDevice = orig })
}

func TestEndToEndScenario(t *testing.T) {
	dev := &fakeDevice{Sim: parport.NewSim(0xc0)}
	withFakeDevice(t, dev, nil)

	rec := &sleepRecorder{}
	p, err := Open("/dev/parport0", WithSleeper(rec.sleep), WithLogger(log.Discard()))
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), dev.Value(), "register zeroed on open")
	assert.Equal(t, "/dev/parport0", p.Device())

	x, err := p.Axis("x")
	require.NoError(t, err)

	require.NoError(t, x.Enable())
	assert.Equal(t, byte(0x04), dev.Value())

	dev.ResetLog()
	for i := 0; i < 3; i++ {
		require.NoError(t, x.Step())
	}
	writes := dev.Writes()
	assert.Equal(t, 3, risingEdges(0x04, writes, 1))
	prev := byte(0x04)
	for _, w := range writes {
		assert.Zero(t, (w^prev)&^byte(0x06), "write 0x%02x touched bits outside {1,2}", w)
		prev = w
	}

	require.NoError(t, x.Disable())
	assert.Zero(t, dev.Value()&0x04)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, dev.closed)
}

func TestUnknownAxis(t *testing.T) {
	p, _, _ := newSimPort(t)

	c, err := p.Axis("z")
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownAxis))

	a, err := p.AxisByID(AxisID(2))
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, errors.ErrUnknownAxis))
}

func TestAxisLookupReturnsSameController(t *testing.T) {
	p, _, _ := newSimPort(t)
	a1, err := p.Axis("y")
	require.NoError(t, err)
	a2, err := p.Axis("Y")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, AxisY, a1.ID())
}

func TestOpenErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		withFakeDevice(t, nil, os.ErrNotExist)
		_, err := Open("/dev/parport9")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrDeviceOpen))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("claim", func(t *testing.T) {
		dev := &fakeDevice{Sim: parport.NewSim(0), claimErr: stderrors.New("EBUSY")}
		withFakeDevice(t, dev, nil)
		_, err := Open("/dev/parport0")
		assert.True(t, errors.Is(err, errors.ErrDeviceClaim))
		assert.Equal(t, 1, dev.closed, "handle released on claim failure")
	})

	t.Run("init", func(t *testing.T) {
		dev := &fakeDevice{Sim: parport.NewSim(0)}
		dev.FailWriteAfter(0)
		withFakeDevice(t, dev, nil)
		_, err := Open("/dev/parport0")
		assert.True(t, errors.Is(err, errors.ErrRegisterInit))
		assert.Equal(t, 1, dev.closed, "handle released on init failure")
	})
}

func TestOpenMissingDeviceDoesNotLeak(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parport-missing")
	before := openFDs(t)

	_, err := Open(path, WithLogger(log.Discard()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeviceOpen))

	assert.Equal(t, before, openFDs(t))
}

func TestOpenNonPortFileFailsClaim(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ppdev claim is linux-only")
	}
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	before := openFDs(t)

	_, err := Open(path, WithLogger(log.Discard()))
	assert.True(t, errors.Is(err, errors.ErrDeviceClaim))
	assert.Equal(t, before, openFDs(t))
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd")
	}
	return len(entries)
}

func TestClosedPort(t *testing.T) {
	p, sim, _ := newSimPort(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	x := mustAxis(t, p, AxisX)
	err := x.Enable()
	assert.True(t, errors.Is(err, errors.ErrHardwareAccess))
	assert.ErrorIs(t, err, parport.ErrClosed)
	assert.Empty(t, sim.Writes())

	_, err = p.Register()
	assert.ErrorIs(t, err, parport.ErrClosed)
}

func TestConcurrentAxesDoNotInterleave(t *testing.T) {
	p, sim, _ := newSimPort(t)
	x := mustAxis(t, p, AxisX)
	y := mustAxis(t, p, AxisY)
	require.NoError(t, x.Enable())
	require.NoError(t, y.Enable())

	const n = 200
	var wg sync.WaitGroup
	for _, a := range []*Axis{x, y} {
		wg.Add(1)
		go func(a *Axis) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				if err := a.Step(); err != nil {
					t.Error(err)
					return
				}
				if i%50 == 0 {
					if err := a.DirRev(); err != nil {
						t.Error(err)
						return
					}
				}
			}
		}(a)
	}
	wg.Wait()

	v := sim.Value()
	assert.Equal(t, byte(0x36), v&0x36, "both enables and step bits survive concurrent cycles")
	assert.Equal(t, n, risingEdges(0x04, sim.Writes(), 1))
	assert.Equal(t, n, risingEdges(0x20, sim.Writes(), 4))
}

type countingObserver struct {
	reads, writes, steps, dirs, faults int
	enabled                            map[string]bool
}

func (c *countingObserver) RegisterRead()           { c.reads++ }
func (c *countingObserver) RegisterWrite(byte)      { c.writes++ }
func (c *countingObserver) StepIssued(string)       { c.steps++ }
func (c *countingObserver) DirectionChanged(string) { c.dirs++ }
func (c *countingObserver) EnableChanged(axis string, on bool) {
	if c.enabled == nil {
		c.enabled = map[string]bool{}
	}
	c.enabled[axis] = on
}
func (c *countingObserver) HardwareFault(string, string) { c.faults++ }

func TestObserverEvents(t *testing.T) {
	obs := &countingObserver{}
	p, sim, _ := newSimPort(t, WithObserver(obs))
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.Enable())
	require.NoError(t, x.DirCCW())
	require.NoError(t, x.DirCCW())
	require.NoError(t, x.Steps(2))

	assert.Equal(t, 2, obs.steps)
	assert.Equal(t, 1, obs.dirs)
	assert.True(t, obs.enabled["x"])
	// zeroing write + enable + dir + 3 step writes
	assert.Equal(t, 6, obs.writes)

	sim.FailReadAfter(0)
	assert.Error(t, x.DirRev())
	assert.Equal(t, 1, obs.faults)
}

func TestRegisterSample(t *testing.T) {
	p, sim, _ := newSimPort(t)
	sim.Set(0x2d)
	v, err := p.Register()
	require.NoError(t, err)
	assert.Equal(t, byte(0x2d), v)
}

func TestRegisterSampleFaultIsObserved(t *testing.T) {
	obs := &countingObserver{}
	p, sim, _ := newSimPort(t, WithObserver(obs))
	sim.FailReadAfter(0)

	_, err := p.Register()
	assert.True(t, errors.Is(err, errors.ErrHardwareAccess))
	assert.ErrorIs(t, err, parport.ErrInjected)
	assert.Equal(t, 1, obs.faults)
	assert.Zero(t, obs.reads)
}

func TestAxisState(t *testing.T) {
	p, sim, _ := newSimPort(t)
	sim.Set(0x2d) // 0b101101: x dir+disable, y dir+disable
	x := mustAxis(t, p, AxisX)
	y := mustAxis(t, p, AxisY)

	st, err := x.State()
	require.NoError(t, err)
	assert.Equal(t, AxisState{Enabled: true, CCW: true, StepHigh: false}, st)

	st, err = y.State()
	require.NoError(t, err)
	assert.Equal(t, AxisState{Enabled: true, CCW: true, StepHigh: false}, st)
}
