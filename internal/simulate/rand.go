package simulate

import (
	"math/rand/v2"
	"sync"
)

// Rand — источник случайных чисел.
type Rand interface {
	// Float64 возвращает число из [0, 1).
	Float64() float64

	// IntN возвращает число из [0, n).
	IntN(n int) int
}

// NewRand создаёт источник. seed == 0 — общий генератор math/rand/v2.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		return globalRand{}
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// globalRand использует потокобезопасные функции пакета rand.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// lockedRand — детерминированный генератор для конкурентного использования.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// IntRange возвращает число из [lo, hi].
func IntRange(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}
