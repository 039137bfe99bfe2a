package jog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"geckodrive-go/pkg/errors"
	"geckodrive-go/pkg/gecko"
	"geckodrive-go/pkg/log"
)

// Program is a named list of moves loaded from YAML:
//
//	name: bench check
//	moves:
//	  - {axis: x, forward: 200, reverse: 400, repeat: 6}
//	  - {axis: y, forward: 50}
//
// repeat defaults to 1.
type Program struct {
	Name  string `yaml:"name"`
	Moves []Move `yaml:"moves"`
}

var moveFields = map[string]bool{"axis": true, "forward": true, "reverse": true, "repeat": true}

// UnmarshalYAML applies the default repeat count. Node.Decode does not
// inherit KnownFields, so move keys are checked here.
func (m *Move) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := value.Content[i]
			if !moveFields[k.Value] {
				return fmt.Errorf("line %d: field %s not found in move", k.Line, k.Value)
			}
		}
	}
	type plain Move
	p := plain{Repeat: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = Move(p)
	return nil
}

// LoadProgram reads and validates a program file.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrProgram, "cannot read program").SetDevice(path)
	}
	return parseProgram(data, path)
}

// ParseProgram decodes and validates a program.
func ParseProgram(data []byte) (*Program, error) {
	return parseProgram(data, "program")
}

func parseProgram(data []byte, source string) (*Program, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Program
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return nil, errors.ProgramError(source, "empty program")
		}
		return nil, errors.Wrap(err, errors.ErrProgram, source+": invalid YAML")
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrProgram, source)
	}
	if p.Name == "" {
		p.Name = source
	}
	return &p, nil
}

// Validate checks every move without touching hardware.
func (p *Program) Validate() error {
	if len(p.Moves) == 0 {
		return fmt.Errorf("no moves")
	}
	for i, m := range p.Moves {
		if _, err := gecko.ParseAxis(m.Axis); err != nil {
			return fmt.Errorf("move %d: %w", i+1, err)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return nil
}

// Total is the number of steps the program issues.
func (p *Program) Total() int {
	n := 0
	for _, m := range p.Moves {
		n += m.Total()
	}
	return n
}

// RunProgram executes the moves in order and stops at the first error.
// The result covers every step issued, including those of a failed move.
func RunProgram(ctx context.Context, axes Axes, p *Program) (*Result, error) {
	logger := log.GetLogger("jog")
	res := newResult()
	start := time.Now()

	logger.WithField("program", p.Name).Infof("running %d moves", len(p.Moves))
	for i, m := range p.Moves {
		if err := run(ctx, axes, m, res, logger); err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("move %d (%s): %w", i+1, m, err)
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
