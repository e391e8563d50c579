// Package random provides a Mersenne Twister stream that reproduces the draws
// of numpy's legacy RandomState for an integer seed.
//
// Partition assignment must match rows chosen by existing tooling seeded the
// same way, so the generator, the bounded draw and the shuffle order all follow
// the legacy algorithm bit for bit.
package random

const (
	stateSize  = 624
	shiftSize  = 397
	matrixA    = 0x9908b0df
	upperMask  = 0x80000000
	lowerMask  = 0x7fffffff
	initFactor = 1812433253
)

// MT19937 is a 32-bit Mersenne Twister. It is not safe for concurrent use.
type MT19937 struct {
	state [stateSize]uint32
	index int
}

// NewMT19937 seeds a generator with init_genrand(seed).
func NewMT19937(seed uint32) *MT19937 {
	mt := &MT19937{}
	mt.Seed(seed)
	return mt
}

// Seed resets the generator state.
func (mt *MT19937) Seed(seed uint32) {
	mt.state[0] = seed
	for i := 1; i < stateSize; i++ {
		prev := mt.state[i-1]
		mt.state[i] = initFactor*(prev^(prev>>30)) + uint32(i)
	}
	mt.index = stateSize
}

func (mt *MT19937) twist() {
	for i := 0; i < stateSize; i++ {
		y := (mt.state[i] & upperMask) | (mt.state[(i+1)%stateSize] & lowerMask)
		next := mt.state[(i+shiftSize)%stateSize] ^ (y >> 1)
		if y&1 != 0 {
			next ^= matrixA
		}
		mt.state[i] = next
	}
	mt.index = 0
}

// Uint32 returns the next tempered 32-bit output.
func (mt *MT19937) Uint32() uint32 {
	if mt.index >= stateSize {
		mt.twist()
	}
	y := mt.state[mt.index]
	mt.index++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Uint64 combines two outputs, the first one in the high word.
func (mt *MT19937) Uint64() uint64 {
	hi := uint64(mt.Uint32())
	lo := uint64(mt.Uint32())
	return hi<<32 | lo
}

// Interval returns a uniform value in [0, max] by masked rejection sampling.
// Interval(0) consumes no output.
func (mt *MT19937) Interval(max uint64) uint64 {
	if max == 0 {
		return 0
	}

	mask := max
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	mask |= mask >> 32

	if max <= 0xffffffff {
		for {
			if v := uint64(mt.Uint32()) & mask; v <= max {
				return v
			}
		}
	}
	for {
		if v := mt.Uint64() & mask; v <= max {
			return v
		}
	}
}

// Shuffle permutes idx in place, walking from the last position down.
func (mt *MT19937) Shuffle(idx []int) {
	for i := len(idx) - 1; i > 0; i-- {
		j := int(mt.Interval(uint64(i)))
		idx[i], idx[j] = idx[j], idx[i]
	}
}

// Permutation returns a shuffled copy of 0..n-1.
func (mt *MT19937) Permutation(n int) []int {
	if n <= 0 {
		return []int{}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	mt.Shuffle(perm)
	return perm
}
