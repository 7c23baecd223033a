// Package appstate holds the small amount of process-wide state shared by
// the HTTP and real-time handlers.
package appstate

import "sync"

const (
	DefaultNumber = 60
	DefaultSignal = "none"
)

type State struct {
	mu     sync.RWMutex
	number float64
	signal string
}

func New() *State {
	return &State{number: DefaultNumber, signal: DefaultSignal}
}

func (s *State) Number() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.number
}

func (s *State) SetNumber(n float64) {
	s.mu.Lock()
	s.number = n
	s.mu.Unlock()
}

func (s *State) Signal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signal
}

func (s *State) SetSignal(sig string) {
	s.mu.Lock()
	s.signal = sig
	s.mu.Unlock()
}
