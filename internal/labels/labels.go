// Package labels withholds the test partition's labels into a
// cross-reference table keyed by a synthetic click_id.
package labels

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
	"github.com/paveg/clickprep/internal/validation"
)

const opExtract = "Extract"

// ClickIDs returns 1..n as uint64 click identifiers.
func ClickIDs(n int) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	return ids
}

// Extract numbers the rows of test with click_id 1..N in their current order
// and returns the unlabeled test table (click_id appended last) with the
// reference table (is_attributed, click_id). A zero-row input still yields
// both tables, together with an advisory EmptyPartition error.
func Extract(test *dataframe.DataFrame) (unlabeled, reference *dataframe.DataFrame, err error) {
	if err := validation.ValidateColumns(test, opExtract, schema.ColIsAttributed); err != nil {
		return nil, nil, err
	}

	clickID := series.New(schema.ColClickID, ClickIDs(test.Len()), memory.NewGoAllocator())
	clickID.Retain()

	stripped := test.Drop(schema.ColIsAttributed, schema.ColClickID)
	defer stripped.Release()
	unlabeled, err = stripped.WithColumn(clickID)
	if err != nil {
		clickID.Release()
		clickID.Release()
		return nil, nil, err
	}

	labelsOnly := test.Select(schema.ColIsAttributed)
	defer labelsOnly.Release()
	reference, err = labelsOnly.WithColumn(clickID)
	if err != nil {
		clickID.Release()
		unlabeled.Release()
		return nil, nil, err
	}

	return unlabeled, reference, validation.ValidateNotEmpty(test, "test", opExtract)
}
