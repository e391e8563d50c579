// Package rebalance equalizes class counts in a labeled table.
package rebalance

import (
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/random"
	"github.com/paveg/clickprep/internal/validation"
)

const opRebalance = "Rebalance"

// Rebalancer returns a table whose label classes are balanced. The input is
// never modified.
type Rebalancer interface {
	Rebalance(df *dataframe.DataFrame, label string) (*dataframe.DataFrame, error)
}

// RandomOverSampler duplicates randomly drawn minority rows until every class
// reaches the size of the largest one. Original rows keep their position and
// synthesized rows follow them, grouped by class in order of first
// appearance.
type RandomOverSampler struct {
	Seed uint32
}

var _ Rebalancer = RandomOverSampler{}

// Rebalance implements Rebalancer.
func (o RandomOverSampler) Rebalance(df *dataframe.DataFrame, label string) (*dataframe.DataFrame, error) {
	if err := validation.ValidateColumns(df, opRebalance, label); err != nil {
		return nil, err
	}
	if df.Len() == 0 {
		return df.Select(df.Columns()...), nil
	}

	col, _ := df.Column(label)
	var order []string
	rows := make(map[string][]int)
	for i := range df.Len() {
		key := col.GetAsString(i)
		if _, seen := rows[key]; !seen {
			order = append(order, key)
		}
		rows[key] = append(rows[key], i)
	}

	largest := 0
	for _, key := range order {
		largest = max(largest, len(rows[key]))
	}

	indices := make([]int, df.Len())
	for i := range indices {
		indices[i] = i
	}

	mt := random.NewMT19937(o.Seed)
	for _, key := range order {
		members := rows[key]
		for range largest - len(members) {
			pick := mt.Interval(uint64(len(members) - 1))
			indices = append(indices, members[pick])
		}
	}
	return df.Take(indices)
}

// Counts returns the number of rows per label value.
func Counts(df *dataframe.DataFrame, label string) (map[string]int, error) {
	if err := validation.ValidateColumns(df, opRebalance, label); err != nil {
		return nil, err
	}
	col, _ := df.Column(label)
	counts := make(map[string]int)
	for i := range df.Len() {
		counts[col.GetAsString(i)]++
	}
	return counts, nil
}
