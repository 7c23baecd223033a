package appstate

import (
	"sync"
	"testing"
)

func TestDefaults(t *testing.T) {
	s := New()
	if s.Number() != DefaultNumber || s.Signal() != DefaultSignal {
		t.Fatalf("got %v/%q, expected %v/%q", s.Number(), s.Signal(), float64(DefaultNumber), DefaultSignal)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.SetNumber(float64(n))
			s.SetSignal("bullish")
			_ = s.Number()
		}(i)
	}
	wg.Wait()

	if s.Signal() != "bullish" {
		t.Fatalf("signal=%q", s.Signal())
	}
	if n := s.Number(); n < 0 || n > 9 {
		t.Fatalf("number=%v, expected one of the written values", n)
	}
}
