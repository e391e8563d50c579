package random_test

import (
	"testing"

	"github.com/paveg/clickprep/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMT19937_ReferenceOutput(t *testing.T) {
	mt := random.NewMT19937(5489)
	assert.Equal(t, uint32(3499211612), mt.Uint32())
}

func TestMT19937_Seed(t *testing.T) {
	a := random.NewMT19937(23)
	first := []uint32{a.Uint32(), a.Uint32(), a.Uint32()}

	a.Seed(23)
	assert.Equal(t, first, []uint32{a.Uint32(), a.Uint32(), a.Uint32()})

	b := random.NewMT19937(24)
	assert.NotEqual(t, first[0], b.Uint32())
}

func TestMT19937_Permutation(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []int
	}{
		{name: "empty", n: 0, want: []int{}},
		{name: "single", n: 1, want: []int{0}},
		{name: "three rows", n: 3, want: []int{1, 0, 2}},
		{name: "five rows", n: 5, want: []int{4, 1, 0, 2, 3}},
		{name: "ten rows", n: 10, want: []int{5, 8, 2, 9, 4, 7, 1, 0, 6, 3}},
		{
			name: "twenty rows",
			n:    20,
			want: []int{0, 10, 2, 1, 4, 5, 14, 15, 3, 16, 7, 11, 12, 13, 17, 18, 9, 8, 6, 19},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := random.NewMT19937(23).Permutation(tt.n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMT19937_Interval(t *testing.T) {
	mt := random.NewMT19937(7)
	assert.Equal(t, uint64(0), mt.Interval(0))

	for _, max := range []uint64{1, 6, 255, 1 << 32, 1<<40 + 3} {
		for range 200 {
			v := mt.Interval(max)
			require.LessOrEqual(t, v, max)
		}
	}
}
