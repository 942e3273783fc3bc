package scale

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"
)

func drain(t *testing.T, ch <-chan Reading) []Reading {
	t.Helper()
	var out []Reading
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("stream did not settle")
		}
	}
}

func TestSimulatorSettlesOnceWithinRange(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		sim := NewSimulator(Options{Interval: time.Microsecond, Rand: rand.New(rand.NewPCG(seed, seed))})
		readings := drain(t, sim.Start(context.Background()))

		if len(readings) < 3 {
			t.Fatalf("seed %d: too few readings %v", seed, readings)
		}
		if readings[0] != (Reading{Grams: 0}) {
			t.Fatalf("seed %d: stream must start at zero, got %+v", seed, readings[0])
		}
		stable := 0
		for i, r := range readings {
			if r.Stable {
				stable++
				if i != len(readings)-1 {
					t.Fatalf("seed %d: stable reading must be last", seed)
				}
			}
			if i > 0 && r.Grams < readings[i-1].Grams {
				t.Fatalf("seed %d: weight decreased %d -> %d", seed, readings[i-1].Grams, r.Grams)
			}
		}
		if stable != 1 {
			t.Fatalf("seed %d: want exactly one stable reading, got %d", seed, stable)
		}
		final := readings[len(readings)-1].Grams
		if final < MinTargetGrams || final > MaxTargetGrams {
			t.Fatalf("seed %d: target %d outside [%d,%d]", seed, final, MinTargetGrams, MaxTargetGrams)
		}
	}
}

func TestSimulatorStopsOnCancel(t *testing.T) {
	sim := NewSimulator(Options{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	ch := sim.Start(ctx)
	if r := <-ch; r.Grams != 0 {
		t.Fatalf("first reading should be zero, got %+v", r)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("no reading expected after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFixedSource(t *testing.T) {
	readings := drain(t, Fixed{Grams: 200}.Start(context.Background()))
	last := readings[len(readings)-1]
	if !last.Stable || last.Grams != 200 {
		t.Fatalf("unexpected final reading %+v", last)
	}
}
