package parport

import (
	"errors"
	"sync"
)

// ErrInjected is returned by Sim when a configured fault fires.
var ErrInjected = errors.New("parport: injected fault")

// Sim is an in-memory Register. It records every write so tests can
// inspect the exact waveform produced on each bit.
type Sim struct {
	mu     sync.Mutex
	value  byte
	writes []byte
	reads  int

	// remaining successful calls before failing; -1 disables the fault
	readBudget  int
	writeBudget int
}

// NewSim returns a simulated register holding initial.
func NewSim(initial byte) *Sim {
	return &Sim{value: initial, readBudget: -1, writeBudget: -1}
}

// Read returns the current value.
func (s *Sim) Read() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readBudget == 0 {
		return 0, ErrInjected
	}
	if s.readBudget > 0 {
		s.readBudget--
	}
	s.reads++
	return s.value, nil
}

// Write stores b and appends it to the write log.
func (s *Sim) Write(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeBudget == 0 {
		return ErrInjected
	}
	if s.writeBudget > 0 {
		s.writeBudget--
	}
	s.value = b
	s.writes = append(s.writes, b)
	return nil
}

// Value returns the current value without counting as a read.
func (s *Sim) Value() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set forces the value without recording a write.
func (s *Sim) Set(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = b
}

// Writes returns a copy of every value written so far.
func (s *Sim) Writes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// Reads returns the number of successful reads.
func (s *Sim) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// FailReadAfter makes every read after the next n fail. n < 0 clears it.
func (s *Sim) FailReadAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readBudget = n
}

// FailWriteAfter makes every write after the next n fail. n < 0 clears it.
func (s *Sim) FailWriteAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBudget = n
}

// ResetLog clears the write log and read count, keeping the value.
func (s *Sim) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
	s.reads = 0
}
