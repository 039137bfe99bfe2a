package jog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geckodrive-go/pkg/errors"
)

const benchProgram = `
name: bench check
moves:
  - {axis: x, forward: 2, reverse: 1, repeat: 2}
  - axis: y
    forward: 3
`

func TestParseProgram(t *testing.T) {
	p, err := ParseProgram([]byte(benchProgram))
	require.NoError(t, err)

	assert.Equal(t, "bench check", p.Name)
	require.Len(t, p.Moves, 2)
	assert.Equal(t, Move{Axis: "x", Forward: 2, Reverse: 1, Repeat: 2}, p.Moves[0])
	assert.Equal(t, Move{Axis: "y", Forward: 3, Repeat: 1}, p.Moves[1], "repeat defaults to 1")
	assert.Equal(t, 9, p.Total())
}

func TestParseProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no moves", "name: nothing\n"},
		{"unknown move field", "moves:\n  - {axis: x, forwrd: 1}\n"},
		{"unknown field", "name: a\nspeed: 3\nmoves:\n  - {axis: x, forward: 1}\n"},
		{"unknown axis", "moves:\n  - {axis: z, forward: 1}\n"},
		{"negative count", "moves:\n  - {axis: x, reverse: -4}\n"},
		{"bad yaml", "moves: [axis: x\n"},
		{"wrong type", "moves:\n  - {axis: x, forward: many}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProgram([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrProgram), "got %v", err)
		})
	}
}

func TestLoadProgram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("moves:\n  - {axis: x, forward: 1}\n"), 0o644))

	p, err := LoadProgram(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Name, "name defaults to the source")

	_, err = LoadProgram(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errors.ErrProgram))
}

func TestRunProgram(t *testing.T) {
	p, sim := newPort(t, nil)
	prog, err := ParseProgram([]byte(benchProgram))
	require.NoError(t, err)

	res, err := RunProgram(context.Background(), p, prog)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 6, "y": 3}, res.Steps)
	assert.Equal(t, prog.Total(), res.Total())
	// both axes end disabled with their step bits high
	assert.Equal(t, byte(0x13), sim.Value())
}

func TestRunProgramStopsAtFailure(t *testing.T) {
	p, sim := newPort(t, nil)
	prog := &Program{Name: "t", Moves: []Move{
		{Axis: "x", Forward: 1, Repeat: 1},
		{Axis: "y", Forward: 1, Repeat: 1},
	}}
	// x uses enable, step, disable; y enable succeeds and its step fails
	sim.FailWriteAfter(4)

	res, err := RunProgram(context.Background(), p, prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "move 2")
	assert.Equal(t, 1, res.Steps["x"])
	assert.Zero(t, res.Steps["y"])
}

func TestParseProgramRejectsMisspelledMoveField(t *testing.T) {
	_, err := ParseProgram([]byte("moves:\n  - {axis: x, forwrd: 200}\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProgram))
	assert.Contains(t, err.Error(), "forwrd")
}
