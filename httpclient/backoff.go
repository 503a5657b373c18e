package httpclient

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"time"
)

// maxBackoffExponent caps the exponent so the float math cannot run away
// for very long retry sequences.
const maxBackoffExponent = 32

// delayFor returns the backoff delay after the failed attempt with the given
// 0-based index: BaseDelay * Multiplier^attemptIndex, capped at MaxDelay
// when set. Deterministic and side-effect free; jitter is applied by the
// executor through an injected source.
func (p *RetryPolicy) delayFor(attemptIndex int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	if attemptIndex > maxBackoffExponent {
		attemptIndex = maxBackoffExponent
	}

	d := time.Duration(math.MaxInt64)
	if f := float64(base) * math.Pow(mult, float64(attemptIndex)); f < float64(math.MaxInt64) {
		d = time.Duration(f)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Jitter randomizes a computed backoff delay. The returned duration must not
// be negative.
type Jitter func(d time.Duration) time.Duration

// FullJitter returns a Jitter that picks a uniform duration in [0, d),
// using the supplied source so tests can seed it deterministically.
func FullJitter(r *rand.Rand) Jitter {
	return func(d time.Duration) time.Duration {
		if d <= 0 {
			return d
		}
		return time.Duration(r.Int64N(int64(d)))
	}
}

// NewJitterSource returns a crypto-seeded PCG source suitable for FullJitter.
func NewJitterSource() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// Degrade to a time-based seed on RNG failure
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, now^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}
