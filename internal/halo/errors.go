package halo

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewHalos is returned when a down-sampling target exceeds the
	// number of halos left to draw from.
	ErrTooFewHalos = errors.New("halo: fewer halos than requested objects")

	// ErrBadWeights is returned when selection weights are negative,
	// non-finite, or leave too few halos with a non-zero probability.
	ErrBadWeights = errors.New("halo: invalid selection weights")

	// ErrUnknownWeight is returned for an observation weighting other than
	// "linear" or "log".
	ErrUnknownWeight = errors.New("halo: unknown observation weighting")

	// ErrUnknownVelocityMode is returned for an unrecognised velocity_attr.
	ErrUnknownVelocityMode = errors.New("halo: unknown velocity broadening mode")

	// ErrNoCosmology is returned by operations that need the catalog
	// cosmology when none is attached.
	ErrNoCosmology = errors.New("halo: catalog has no cosmology")
)

// LengthError reports a column whose length disagrees with the halo count.
type LengthError struct {
	Column Column
	Len    int
	Want   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("halo: column %s has %d entries, catalog has %d halos", e.Column, e.Len, e.Want)
}

// IndexError reports an index outside the catalog.
type IndexError struct {
	Index int
	N     int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("halo: index %d out of range for %d halos", e.Index, e.N)
}

// ColumnError reports a column that cannot be used.
type ColumnError struct {
	Column Column
	Reason string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("halo: column %s: %s", e.Column, e.Reason)
}
