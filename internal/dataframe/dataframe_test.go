package dataframe_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDataFrame() *dataframe.DataFrame {
	mem := memory.NewGoAllocator()

	ips := series.New("ip", []uint32{83230, 17357, 35810}, mem)
	apps := series.New("app", []uint16{3, 3, 3}, mem)
	labels := series.New("is_attributed", []uint8{0, 1, 0}, mem)

	// DataFrame takes ownership of the series
	return dataframe.New(ips, apps, labels)
}

func TestNewDataFrame(t *testing.T) {
	df := createTestDataFrame()
	defer df.Release()

	assert.Equal(t, 3, df.Len())
	assert.Equal(t, 3, df.Width())
	assert.Equal(t, []string{"ip", "app", "is_attributed"}, df.Columns())
	assert.True(t, df.HasColumn("ip"))
	assert.False(t, df.HasColumn("click_id"))
}

func TestEmptyDataFrame(t *testing.T) {
	df := dataframe.New()
	defer df.Release()

	assert.Equal(t, 0, df.Len())
	assert.Equal(t, 0, df.Width())
	assert.Equal(t, []string{}, df.Columns())
	assert.Equal(t, "DataFrame[empty]", df.String())
}

func TestDataFrameSelectAndDrop(t *testing.T) {
	df := createTestDataFrame()
	defer df.Release()

	t.Run("select keeps requested order", func(t *testing.T) {
		selected := df.Select("is_attributed", "ip", "missing")
		defer selected.Release()

		assert.Equal(t, []string{"is_attributed", "ip"}, selected.Columns())
		assert.Equal(t, 3, selected.Len())
	})

	t.Run("drop returns a new frame and leaves the receiver intact", func(t *testing.T) {
		dropped := df.Drop("app", "not_there")
		defer dropped.Release()

		assert.Equal(t, []string{"ip", "is_attributed"}, dropped.Columns())
		assert.Equal(t, []string{"ip", "app", "is_attributed"}, df.Columns())
	})
}

func TestDataFrameWithColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := createTestDataFrame()
	defer df.Release()

	t.Run("appends new column", func(t *testing.T) {
		out, err := df.WithColumn(series.New("click_id", []uint64{1, 2, 3}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"ip", "app", "is_attributed", "click_id"}, out.Columns())
	})

	t.Run("replaces in place", func(t *testing.T) {
		out, err := df.WithColumn(series.New("app", []uint16{9, 9, 9}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"ip", "app", "is_attributed"}, out.Columns())
		col, _ := out.Column("app")
		assert.Equal(t, []uint16{9, 9, 9}, col.(*series.Series[uint16]).Values())
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		short := series.New("click_id", []uint64{1}, mem)
		defer short.Release()

		_, err := df.WithColumn(short)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestDataFrameTake(t *testing.T) {
	df := createTestDataFrame()
	defer df.Release()

	taken, err := df.Take([]int{2, 0})
	require.NoError(t, err)
	defer taken.Release()

	assert.Equal(t, 2, taken.Len())
	assert.Equal(t, []string{"35810", "3", "0"}, taken.Row(0))
	assert.Equal(t, []string{"83230", "3", "0"}, taken.Row(1))

	_, err = df.Take([]int{5})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestDataFrameString(t *testing.T) {
	df := createTestDataFrame()
	defer df.Release()

	assert.Equal(t, "DataFrame[3x3]\n  ip: uint32\n  app: uint16\n  is_attributed: uint8", df.String())
}
