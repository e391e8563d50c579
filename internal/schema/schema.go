// Package schema holds the fixed column layouts of the click-fraud files.
//
// Three file shapes exist: the labeled training file, the unlabeled test
// file and the cross-reference file pairing click_id with the withheld
// label. Training and test files come in a raw stage, where click_time is
// still a timestamp, and a decomposed stage written by this tool, where the
// timestamp has been replaced by calendar fields.
package schema

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/clickprep/internal/errors"
)

// Column names shared by every stage.
const (
	ColIP             = "ip"
	ColApp            = "app"
	ColDevice         = "device"
	ColOS             = "os"
	ColChannel        = "channel"
	ColClickTime      = "click_time"
	ColAttributedTime = "attributed_time"
	ColIsAttributed   = "is_attributed"
	ColClickID        = "click_id"
	ColYear           = "year"
	ColMonth          = "month"
	ColDay            = "day"
	ColHour           = "hour"
	ColMinute         = "minute"
	ColSecond         = "second"
)

// Type is the semantic type a column is coerced to on load.
type Type int

const (
	U8 Type = iota
	U16
	U32
	U64
	Timestamp
)

// String returns the type name used in error messages.
func (t Type) String() string {
	switch t {
	case U8:
		return "uint8"
	case U16:
		return "uint16"
	case U32:
		return "uint32"
	case U64:
		return "uint64"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Bits returns the width of an unsigned type, 0 for Timestamp.
func (t Type) Bits() int {
	switch t {
	case U8:
		return 8
	case U16:
		return 16
	case U32:
		return 32
	case U64:
		return 64
	default:
		return 0
	}
}

// ArrowID returns the Arrow type identifier a loaded column carries.
func (t Type) ArrowID() arrow.Type {
	switch t {
	case U8:
		return arrow.UINT8
	case U16:
		return arrow.UINT16
	case U32:
		return arrow.UINT32
	case U64:
		return arrow.UINT64
	default:
		return arrow.TIMESTAMP
	}
}

// Column declares one typed column.
type Column struct {
	Name string
	Type Type
	// Optional columns may be absent from the file.
	Optional bool
	// Nullable columns accept empty cells, which load as nulls.
	Nullable bool
}

// Schema is an ordered set of declared columns.
type Schema struct {
	Variant Variant
	Stage   Stage
	Columns []Column
}

// Column returns the declaration for name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the declared column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// String names the schema as variant/stage.
func (s Schema) String() string {
	return fmt.Sprintf("%s/%s", s.Variant, s.Stage)
}

// Variant is one of the three file shapes.
type Variant string

const (
	Train     Variant = "train"
	Test      Variant = "test"
	Reference Variant = "reference"
)

// Stage tells whether click_time has been decomposed yet.
type Stage string

const (
	Raw        Stage = "raw"
	Decomposed Stage = "decomposed"
)

// ParseVariant parses a variant name case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case Train, Test, Reference:
		return v, nil
	default:
		return "", errors.NewValidationError("ParseVariant", "", fmt.Sprintf("unknown schema variant %q", s))
	}
}

// ParseStage parses a stage name case-insensitively.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(strings.ToLower(strings.TrimSpace(s))); st {
	case Raw, Decomposed:
		return st, nil
	default:
		return "", errors.NewValidationError("ParseStage", "", fmt.Sprintf("unknown schema stage %q", s))
	}
}

var identifiers = []Column{
	{Name: ColIP, Type: U32},
	{Name: ColApp, Type: U16},
	{Name: ColDevice, Type: U16},
	{Name: ColOS, Type: U32},
	{Name: ColChannel, Type: U32},
}

var calendar = []Column{
	{Name: ColDay, Type: U32},
	{Name: ColHour, Type: U32},
	{Name: ColMinute, Type: U32},
	{Name: ColSecond, Type: U32},
}

func join(parts ...[]Column) []Column {
	var out []Column
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var registry = map[Variant]map[Stage][]Column{
	Train: {
		Raw: join(identifiers, []Column{
			{Name: ColClickTime, Type: Timestamp},
			{Name: ColAttributedTime, Type: Timestamp, Optional: true, Nullable: true},
			{Name: ColIsAttributed, Type: U8},
		}),
		Decomposed: join(identifiers, []Column{{Name: ColIsAttributed, Type: U8}}, calendar),
	},
	Test: {
		Raw: join(identifiers, []Column{
			{Name: ColClickTime, Type: Timestamp},
			{Name: ColClickID, Type: U64},
		}),
		Decomposed: join(identifiers, []Column{{Name: ColClickID, Type: U64}}, calendar),
	},
	Reference: {
		Raw: {
			{Name: ColIsAttributed, Type: U8},
			{Name: ColClickID, Type: U64},
		},
	},
}

// Lookup returns the declared schema for a variant and stage. The
// reference variant has a single layout and ignores the stage.
func Lookup(variant Variant, stage Stage) (Schema, error) {
	stages, ok := registry[variant]
	if !ok {
		return Schema{}, errors.NewValidationError("Lookup", "", fmt.Sprintf("unknown schema variant %q", variant))
	}
	if variant == Reference {
		stage = Raw
	}
	cols, ok := stages[stage]
	if !ok {
		return Schema{}, errors.NewValidationError("Lookup", "", fmt.Sprintf("unknown schema stage %q", stage))
	}
	return Schema{Variant: variant, Stage: stage, Columns: append([]Column(nil), cols...)}, nil
}

// MustLookup is Lookup for the built-in variant/stage pairs.
func MustLookup(variant Variant, stage Stage) Schema {
	s, err := Lookup(variant, stage)
	if err != nil {
		panic(err)
	}
	return s
}
