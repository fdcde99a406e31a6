// Package randutil provides thread-safe random generation for probe
// payloads.
//
// The standard math/rand package uses a global mutex-protected source,
// which becomes a bottleneck when many probes prepare their parameters
// concurrently. This package hands out per-goroutine sources via
// sync.Pool.
package randutil

import (
	"math/rand"
	"sync"
	"time"
)

// Charset is the alphabet used for generated parameter names, values and
// cachebuster tokens. Lowercase only: reflection counting lowercases the
// response before matching.
const Charset = "abcdefghijklmnopqrstuvwxyz0123456789"

var pool = sync.Pool{
	New: func() interface{} {
		// Time-based seeding is sufficient here; the tokens only need to be
		// unlikely to occur on the target page, not unpredictable.
		return rand.New(rand.NewSource(time.Now().UnixNano() + int64(rand.Int63())))
	},
}

// Rand is a pooled random source. Callers MUST call Release when done,
// typically via defer.
type Rand struct {
	*rand.Rand
}

// Get retrieves a random source from the pool.
func Get() *Rand {
	return &Rand{Rand: pool.Get().(*rand.Rand)}
}

// Release returns the random source to the pool.
func (r *Rand) Release() {
	if r.Rand != nil {
		pool.Put(r.Rand)
		r.Rand = nil
	}
}

// Line generates a random token of size chars from Charset.
func Line(size int) string {
	rng := Get()
	defer rng.Release()

	b := make([]byte, size)
	for i := range b {
		b[i] = Charset[rng.Intn(len(Charset))]
	}
	return string(b)
}

// Intn returns a random int in [0, n) using a pooled source.
func Intn(n int) int {
	rng := Get()
	defer rng.Release()
	return rng.Rand.Intn(n)
}

// Shuffle randomizes the order of elements using a pooled source.
func Shuffle(n int, swap func(i, j int)) {
	rng := Get()
	defer rng.Release()
	rng.Rand.Shuffle(n, swap)
}
