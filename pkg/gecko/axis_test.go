package gecko

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geckodrive-go/pkg/errors"
	"geckodrive-go/pkg/log"
	"geckodrive-go/pkg/parport"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func (r *sleepRecorder) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var testTiming = Timing{StepHalfPeriod: 83 * time.Microsecond, DirSettle: 20 * time.Microsecond}

func newSimPort(t *testing.T, opts ...Option) (*Port, *parport.Sim, *sleepRecorder) {
	t.Helper()
	sim := parport.NewSim(0)
	rec := &sleepRecorder{}
	all := []Option{
		WithSleeper(rec.sleep),
		WithLogger(log.Discard()),
		WithTiming(AxisX, testTiming),
		WithTiming(AxisY, testTiming),
	}
	p, err := NewPort(sim, append(all, opts...)...)
	require.NoError(t, err)
	sim.ResetLog()
	return p, sim, rec
}

func mustAxis(t *testing.T, p *Port, id AxisID) *Axis {
	t.Helper()
	a, err := p.AxisByID(id)
	require.NoError(t, err)
	return a
}

// bitTrace extracts one bit from every recorded write.
func bitTrace(writes []byte, bit uint8) []bool {
	out := make([]bool, len(writes))
	for i, w := range writes {
		out[i] = w&(1<<bit) != 0
	}
	return out
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in   string
		want AxisID
		ok   bool
	}{
		{"x", AxisX, true},
		{"X", AxisX, true},
		{" y ", AxisY, true},
		{"z", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAxis(tt.in)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrUnknownAxis))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, name string) AxisID {
	id, err := ParseAxis(name)
	require.NoError(t, err)
	return id
}

func TestWiringTable(t *testing.T) {
	require.NoError(t, validateBits(axisBits[:]))

	x, err := BitsFor(AxisX)
	require.NoError(t, err)
	assert.Equal(t, Bits{Dir: 0, Step: 1, Disable: 2}, x)
	assert.Equal(t, byte(0x07), x.Mask())

	y, err := BitsFor(AxisY)
	require.NoError(t, err)
	assert.Equal(t, Bits{Dir: 3, Step: 4, Disable: 5}, y)
	assert.Equal(t, byte(0x38), y.Mask())

	_, err = BitsFor(AxisID(7))
	assert.True(t, errors.Is(err, errors.ErrUnknownAxis))
}

func TestValidateBitsRejectsBadTables(t *testing.T) {
	assert.Error(t, validateBits([]Bits{{0, 1, 2}, {2, 3, 4}}), "overlap")
	assert.Error(t, validateBits([]Bits{{0, 0, 2}}), "duplicate")
	assert.Error(t, validateBits([]Bits{{0, 1, 8}}), "out of range")
}

func TestEnableDisablePolarity(t *testing.T) {
	p, sim, rec := newSimPort(t)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.Enable())
	assert.Equal(t, byte(0x04), sim.Value(), "enable sets the disable bit")

	require.NoError(t, x.Disable())
	assert.Equal(t, byte(0x00), sim.Value(), "disable clears the disable bit")

	assert.Len(t, sim.Writes(), 2)
	assert.Empty(t, rec.get(), "enable/disable never delay")
}

func TestStepFromLow(t *testing.T) {
	p, sim, rec := newSimPort(t)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.Step())

	assert.Equal(t, []bool{true}, bitTrace(sim.Writes(), 1))
	assert.Equal(t, []time.Duration{testTiming.StepHalfPeriod}, rec.get())
}

func TestStepFromHigh(t *testing.T) {
	p, sim, rec := newSimPort(t)
	sim.Set(0x02)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.Step())

	assert.Equal(t, []bool{false, true}, bitTrace(sim.Writes(), 1))
	assert.Equal(t, []time.Duration{testTiming.StepHalfPeriod, testTiming.StepHalfPeriod}, rec.get())
}

func TestStepAlwaysEndsHigh(t *testing.T) {
	for _, start := range []byte{0x00, 0x02, 0xff, 0xfd, 0x10} {
		p, sim, _ := newSimPort(t)
		sim.Set(start)
		for _, id := range Axes {
			a := mustAxis(t, p, id)
			require.NoError(t, a.Step())
			st, err := a.State()
			require.NoError(t, err)
			assert.True(t, st.StepHigh, "axis %s from 0x%02x", id, start)
		}
	}
}

func TestBackToBackStepsProduceEdges(t *testing.T) {
	t.Run("starting high", func(t *testing.T) {
		p, sim, _ := newSimPort(t)
		sim.Set(0x10)
		y := mustAxis(t, p, AxisY)

		require.NoError(t, y.Step())
		require.NoError(t, y.Step())
		assert.Equal(t, []bool{false, true, false, true}, bitTrace(sim.Writes(), 4))
	})

	t.Run("starting low", func(t *testing.T) {
		p, sim, _ := newSimPort(t)
		y := mustAxis(t, p, AxisY)

		require.NoError(t, y.Step())
		assert.Equal(t, []bool{true}, bitTrace(sim.Writes(), 4))

		require.NoError(t, y.Step())
		assert.Equal(t, []bool{true, false, true}, bitTrace(sim.Writes(), 4))
	})
}

func TestDirCWIdempotent(t *testing.T) {
	p, sim, rec := newSimPort(t)
	sim.Set(0x01)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.DirCW())
	require.NoError(t, x.DirCW())

	assert.Equal(t, []byte{0x00}, sim.Writes())
	assert.Equal(t, []time.Duration{testTiming.DirSettle}, rec.get())
}

func TestDirCCWIdempotent(t *testing.T) {
	p, sim, rec := newSimPort(t)
	y := mustAxis(t, p, AxisY)

	require.NoError(t, y.DirCCW())
	require.NoError(t, y.DirCCW())

	assert.Equal(t, []byte{0x08}, sim.Writes())
	assert.Equal(t, []time.Duration{testTiming.DirSettle}, rec.get())
}

func TestDirMatchingStateIsNoop(t *testing.T) {
	p, sim, rec := newSimPort(t)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.DirCW())
	assert.Empty(t, sim.Writes())
	assert.Empty(t, rec.get())
	assert.Equal(t, 1, sim.Reads(), "state is always re-read")
}

func TestDirRevTwiceRestores(t *testing.T) {
	for _, start := range []byte{0x00, 0x08} {
		p, sim, rec := newSimPort(t)
		sim.Set(start)
		y := mustAxis(t, p, AxisY)

		require.NoError(t, y.DirRev())
		require.NoError(t, y.DirRev())

		assert.Equal(t, start, sim.Value())
		assert.Len(t, sim.Writes(), 2)
		assert.Len(t, rec.get(), 2, "dir_rev always delays")
	}
}

func TestMaskIsolation(t *testing.T) {
	ops := map[string]func(*Axis) error{
		"enable":  (*Axis).Enable,
		"disable": (*Axis).Disable,
		"step":    (*Axis).Step,
		"dir_cw":  (*Axis).DirCW,
		"dir_ccw": (*Axis).DirCCW,
		"dir_rev": (*Axis).DirRev,
	}
	starts := []byte{0x00, 0xff, 0xa5, 0x5a, 0xc0, 0x3f}

	for _, id := range Axes {
		for name, op := range ops {
			for _, start := range starts {
				p, sim, _ := newSimPort(t)
				sim.Set(start)
				a := mustAxis(t, p, id)
				foreign := ^a.Bits().Mask()

				require.NoError(t, op(a))
				for _, w := range sim.Writes() {
					assert.Equal(t, start&foreign, w&foreign,
						"axis %s %s from 0x%02x wrote 0x%02x", id, name, start, w)
				}
			}
		}
	}
}

func TestSteps(t *testing.T) {
	p, sim, _ := newSimPort(t)
	x := mustAxis(t, p, AxisX)

	require.NoError(t, x.Steps(0))
	assert.Empty(t, sim.Writes())

	require.NoError(t, x.Steps(4))
	assert.Equal(t, 4, risingEdges(0, sim.Writes(), 1))

	err := x.Steps(-1)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func risingEdges(start byte, writes []byte, bit uint8) int {
	mask := byte(1) << bit
	prev := start & mask
	n := 0
	for _, w := range writes {
		cur := w & mask
		if prev == 0 && cur != 0 {
			n++
		}
		prev = cur
	}
	return n
}

func TestHardwareErrors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		p, sim, rec := newSimPort(t)
		sim.FailReadAfter(0)
		x := mustAxis(t, p, AxisX)

		err := x.Step()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrHardwareAccess))
		assert.ErrorIs(t, err, parport.ErrInjected)
		assert.Empty(t, sim.Writes())
		assert.Empty(t, rec.get())
	})

	t.Run("write failure mid-step leaves last value", func(t *testing.T) {
		p, sim, rec := newSimPort(t)
		sim.Set(0x02)
		sim.FailWriteAfter(1)
		x := mustAxis(t, p, AxisX)

		err := x.Step()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrHardwareAccess))
		assert.Equal(t, byte(0x00), sim.Value(), "no rollback after the failed rising edge")
		assert.Len(t, rec.get(), 1)
	})

	t.Run("dir write failure skips delay", func(t *testing.T) {
		p, sim, rec := newSimPort(t)
		sim.FailWriteAfter(0)
		y := mustAxis(t, p, AxisY)

		assert.Error(t, y.DirRev())
		assert.Empty(t, rec.get())
	})
}

func TestTimingValidate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())
	assert.Error(t, Timing{StepHalfPeriod: -1}.Validate())
	assert.Error(t, Timing{DirSettle: -time.Second}.Validate())

	_, err := NewPort(parport.NewSim(0), WithTiming(AxisY, Timing{StepHalfPeriod: -1}))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestDefaultTiming(t *testing.T) {
	p, err := NewPort(parport.NewSim(0), WithLogger(log.Discard()))
	require.NoError(t, err)
	for _, id := range Axes {
		a := mustAxis(t, p, id)
		assert.Equal(t, 83*time.Microsecond, a.Timing().StepHalfPeriod)
		assert.Zero(t, a.Timing().DirSettle)
	}
}
