package demand

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingValue indicates an export table has no entry for a key the
	// segment index says must exist.
	ErrMissingValue = errors.New("demand: missing value for expected key")
	// ErrNoCurve indicates no segments exist for the requested key.
	ErrNoCurve = errors.New("demand: no segments for key")
	// ErrUndefinedElasticity indicates the selected segment has zero slope or
	// the operating point has zero quantity.
	ErrUndefinedElasticity = errors.New("demand: elasticity undefined at operating point")
	// ErrVOLLInverse indicates a quantity lookup by price on a flat VOLL curve.
	ErrVOLLInverse = errors.New("demand: VOLL curve has no price inverse")
	// ErrSpanMismatch indicates the summed segment widths do not match the
	// expected multiple of the reference quantity.
	ErrSpanMismatch = errors.New("demand: segment span does not match reference quantity")
	// ErrNegativeQuantity indicates a price lookup below zero quantity.
	ErrNegativeQuantity = errors.New("demand: quantity must be non-negative")
)

// MissingValueError names the table and key of a missing export entry.
type MissingValueError struct {
	Table string
	Key   SegmentKey
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("demand: missing %s value for k=%d %s", e.Table, e.Key.Index, e.Key.Key)
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }
