// Package workload generates host write streams for driving an ftl.Engine.
package workload

import (
	"fmt"
	"math/rand"

	"github.com/garethgeorge/goftl/internal/ftl"
)

// Generator yields logical addresses in [0, size).
type Generator interface {
	Next() ftl.LBA
}

// Sequential walks the logical space in order, wrapping at the end.
type Sequential struct {
	size int64
	next int64
}

func NewSequential(size int64) *Sequential {
	return &Sequential{size: size}
}

func (s *Sequential) Next() ftl.LBA {
	lba := ftl.LBA(s.next)
	s.next = (s.next + 1) % s.size
	return lba
}

type Uniform struct {
	rng  *rand.Rand
	size int64
}

func NewUniform(size int64, seed int64) *Uniform {
	return &Uniform{rng: rand.New(rand.NewSource(seed)), size: size}
}

func (u *Uniform) Next() ftl.LBA {
	return ftl.LBA(u.rng.Int63n(u.size))
}

// HotCold sends hotProbability of writes to the first hotFraction of the
// logical space and the rest uniformly over the remainder.
type HotCold struct {
	rng            *rand.Rand
	hot            int64
	size           int64
	hotProbability float64
}

func NewHotCold(size int64, hotFraction, hotProbability float64, seed int64) (*HotCold, error) {
	if hotFraction <= 0 || hotFraction >= 1 {
		return nil, fmt.Errorf("hot fraction must be in (0, 1), got %v", hotFraction)
	}
	if hotProbability < 0 || hotProbability > 1 {
		return nil, fmt.Errorf("hot probability must be in [0, 1], got %v", hotProbability)
	}
	hot := int64(float64(size) * hotFraction)
	if hot < 1 || hot >= size {
		return nil, fmt.Errorf("hot fraction %v of %d pages leaves an empty region", hotFraction, size)
	}
	return &HotCold{
		rng:            rand.New(rand.NewSource(seed)),
		hot:            hot,
		size:           size,
		hotProbability: hotProbability,
	}, nil
}

func (h *HotCold) Next() ftl.LBA {
	if h.rng.Float64() < h.hotProbability {
		return ftl.LBA(h.rng.Int63n(h.hot))
	}
	return ftl.LBA(h.hot + h.rng.Int63n(h.size-h.hot))
}

// New builds a generator by name: "sequential", "uniform" or "hotcold"
// (20% of the space receiving 80% of the writes).
func New(kind string, size int64, seed int64) (Generator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("workload over empty logical space")
	}
	switch kind {
	case "sequential":
		return NewSequential(size), nil
	case "uniform":
		return NewUniform(size, seed), nil
	case "hotcold":
		return NewHotCold(size, 0.2, 0.8, seed)
	}
	return nil, fmt.Errorf("unknown workload %q", kind)
}
