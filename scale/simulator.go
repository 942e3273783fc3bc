// Package scale produces the weight signal of the (simulated) smart scale.
package scale

import (
	"context"
	"math/rand/v2"
	"time"
)

// Reading is one sample of the weight stream.
type Reading struct {
	Grams  int
	Stable bool
}

// Source is anything that emits a settling weight stream. The channel is
// closed once the stream has settled or ctx is done.
type Source interface {
	Start(ctx context.Context) <-chan Reading
}

const (
	MinTargetGrams = 150
	MaxTargetGrams = 350
)

type Options struct {
	Interval time.Duration // delay between samples
	MinStep  int           // grams added per sample, lower bound
	MaxStep  int           // grams added per sample, upper bound
	Rand     *rand.Rand    // nil uses a time-seeded source
}

// Simulator ramps from 0 g up to a random target in
// [MinTargetGrams, MaxTargetGrams], then reports a single stable reading.
type Simulator struct {
	opts Options
}

func NewSimulator(opts Options) *Simulator {
	if opts.Interval <= 0 {
		opts.Interval = 120 * time.Millisecond
	}
	if opts.MinStep <= 0 {
		opts.MinStep = 5
	}
	if opts.MaxStep < opts.MinStep {
		opts.MaxStep = opts.MinStep + 20
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>17))
	}
	return &Simulator{opts: opts}
}

// Target draws the settle weight for the next run.
func (s *Simulator) Target() int {
	return MinTargetGrams + s.opts.Rand.IntN(MaxTargetGrams-MinTargetGrams+1)
}

func (s *Simulator) Start(ctx context.Context) <-chan Reading {
	target := s.Target()
	steps := make([]int, 0, 32)
	for g := 0; g < target; {
		g += s.opts.MinStep + s.opts.Rand.IntN(s.opts.MaxStep-s.opts.MinStep+1)
		if g > target {
			g = target
		}
		steps = append(steps, g)
	}
	return emit(ctx, s.opts.Interval, steps)
}

// emit sends 0 g, then each value of ramp unstable, then the last value once
// more as the stable reading.
func emit(ctx context.Context, interval time.Duration, ramp []int) <-chan Reading {
	out := make(chan Reading)
	go func() {
		defer close(out)
		send := func(r Reading) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(Reading{Grams: 0}) {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := 0
		for _, g := range ramp {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			last = g
			if !send(Reading{Grams: g}) {
				return
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		send(Reading{Grams: last, Stable: true})
	}()
	return out
}

// Fixed is a Source that settles at a known weight. Used by the static
// classifier backend in development and by tests.
type Fixed struct {
	Grams    int
	Interval time.Duration
}

func (f Fixed) Start(ctx context.Context) <-chan Reading {
	interval := f.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	var ramp []int
	if f.Grams > 0 {
		ramp = []int{f.Grams / 2, f.Grams}
	}
	return emit(ctx, interval, ramp)
}
