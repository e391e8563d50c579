// Package partition splits a labeled table into train and test rows the way
// scikit-learn's train_test_split does for an integer random_state.
package partition

import (
	"fmt"
	"math"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/random"
	"github.com/paveg/clickprep/internal/validation"
)

const (
	DefaultTestSize = 0.20
	DefaultSeed     = 23

	opSplit  = "Split"
	opVerify = "Verify"
)

// Options configures Split.
type Options struct {
	TestSize float64
	Seed     uint32
}

// DefaultOptions returns the fixed 80/20 split with seed 23.
func DefaultOptions() Options {
	return Options{TestSize: DefaultTestSize, Seed: DefaultSeed}
}

// Sizes returns the test and train row counts for n rows.
func (o Options) Sizes(n int) (nTest, nTrain int) {
	nTest = int(math.Ceil(o.TestSize * float64(n)))
	return nTest, n - nTest
}

// Indices returns the row positions assigned to each partition. Both slices
// follow permutation order.
func (o Options) Indices(n int) (train, test []int, err error) {
	if err := validation.ValidateFraction("test size", o.TestSize, opSplit); err != nil {
		return nil, nil, err
	}
	perm := random.NewMT19937(o.Seed).Permutation(n)
	nTest, _ := o.Sizes(n)
	return perm[nTest:], perm[:nTest], nil
}

// Split partitions df into train and test frames. The input stays intact and
// an empty input yields two empty frames with the same columns.
func Split(df *dataframe.DataFrame, opts Options) (train, test *dataframe.DataFrame, err error) {
	trainIdx, testIdx, err := opts.Indices(df.Len())
	if err != nil {
		return nil, nil, err
	}

	test, err = df.Take(testIdx)
	if err != nil {
		return nil, nil, err
	}
	train, err = df.Take(trainIdx)
	if err != nil {
		test.Release()
		return nil, nil, err
	}
	return train, test, nil
}

// Fingerprint hashes the rendered cells of row i.
func Fingerprint(df *dataframe.DataFrame, i int) uint64 {
	return xxhash.Sum64String(strings.Join(df.Row(i), "\x1f"))
}

func fingerprints(df *dataframe.DataFrame) map[uint64]int {
	counts := make(map[uint64]int, df.Len())
	for i := range df.Len() {
		counts[Fingerprint(df, i)]++
	}
	return counts
}

// Verify checks that train and test together hold exactly the rows of
// source, counted as multisets, and that they share its column layout. Any
// difference is a SchemaMismatch.
func Verify(source, train, test *dataframe.DataFrame) error {
	parts := []struct {
		name string
		df   *dataframe.DataFrame
	}{{"train", train}, {"test", test}}

	want := strings.Join(source.Columns(), ",")
	for _, part := range parts {
		if got := strings.Join(part.df.Columns(), ","); got != want {
			return errors.NewPartitionMismatchError(opVerify,
				fmt.Sprintf("%s columns [%s] differ from source [%s]", part.name, got, want))
		}
	}

	if got := train.Len() + test.Len(); got != source.Len() {
		return errors.NewPartitionMismatchError(opVerify,
			fmt.Sprintf("train plus test hold %d rows, source has %d", got, source.Len()))
	}

	remaining := fingerprints(source)
	for _, part := range parts {
		for i := range part.df.Len() {
			fp := Fingerprint(part.df, i)
			if remaining[fp] == 0 {
				return errors.NewPartitionMismatchError(opVerify,
					fmt.Sprintf("%s row %d is not an unused source row", part.name, i))
			}
			remaining[fp]--
		}
	}
	return nil
}
