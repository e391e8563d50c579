package rebalance_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/partition"
	"github.com/paveg/clickprep/internal/rebalance"
	"github.com/paveg/clickprep/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced(mem memory.Allocator) *dataframe.DataFrame {
	return dataframe.New(
		series.New("ip", []uint32{1, 2, 3, 4, 5, 6, 7}, mem),
		series.New("is_attributed", []uint8{0, 0, 1, 0, 0, 1, 0}, mem),
	)
}

func TestRandomOverSampler(t *testing.T) {
	mem := memory.NewGoAllocator()
	var sampler rebalance.Rebalancer = rebalance.RandomOverSampler{Seed: 23}

	t.Run("classes reach the majority count", func(t *testing.T) {
		df := imbalanced(mem)
		defer df.Release()

		out, err := sampler.Rebalance(df, "is_attributed")
		require.NoError(t, err)
		defer out.Release()

		counts, err := rebalance.Counts(out, "is_attributed")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"0": 5, "1": 5}, counts)
		assert.Equal(t, 10, out.Len())

		for i := range df.Len() {
			assert.Equal(t, df.Row(i), out.Row(i))
		}
		minority := map[string]bool{"3": true, "6": true}
		for i := df.Len(); i < out.Len(); i++ {
			assert.True(t, minority[out.Row(i)[0]], "row %d duplicates a minority row", i)
		}
	})

	t.Run("deterministic for a seed", func(t *testing.T) {
		df := imbalanced(mem)
		defer df.Release()

		a, err := sampler.Rebalance(df, "is_attributed")
		require.NoError(t, err)
		defer a.Release()
		b, err := sampler.Rebalance(df, "is_attributed")
		require.NoError(t, err)
		defer b.Release()

		assert.Equal(t, partition.Fingerprint(a, 9), partition.Fingerprint(b, 9))
		for i := range a.Len() {
			assert.Equal(t, a.Row(i), b.Row(i))
		}
	})

	t.Run("balanced input is unchanged", func(t *testing.T) {
		df := dataframe.New(
			series.New("ip", []uint32{1, 2}, mem),
			series.New("is_attributed", []uint8{0, 1}, mem),
		)
		defer df.Release()

		out, err := sampler.Rebalance(df, "is_attributed")
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, 2, out.Len())
	})

	t.Run("empty input", func(t *testing.T) {
		df := dataframe.New(
			series.New("ip", []uint32{}, mem),
			series.New("is_attributed", []uint8{}, mem),
		)
		defer df.Release()

		out, err := sampler.Rebalance(df, "is_attributed")
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, 0, out.Len())
		assert.Equal(t, df.Columns(), out.Columns())
	})

	t.Run("missing label", func(t *testing.T) {
		df := dataframe.New(series.New("ip", []uint32{1}, mem))
		defer df.Release()

		_, err := sampler.Rebalance(df, "is_attributed")
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})
}
