// Package lookup implements the three per-row lookups of the enrichment pipeline:
// point-in-section assignment, the as-of temporal join, and radius service flags.
// Indexes are built once and are safe for any number of concurrent readers.
package lookup

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ConfigurationError marks a structural failure (mismatched CRS, empty index
// input, invalid radius, missing columns) that must abort the whole run.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configurationf builds a ConfigurationError from a format string.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Err: eris.Errorf(format, args...)}
}

// AsConfiguration marks err as a ConfigurationError. Nil stays nil.
func AsConfiguration(err error) error {
	if err == nil || IsConfiguration(err) {
		return err
	}
	return &ConfigurationError{Err: err}
}

// IsConfiguration reports whether err (or anything it wraps) is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// WarningKind classifies a recoverable data quality problem.
type WarningKind string

const (
	WarnBadYear            WarningKind = "bad_year"
	WarnBadCoordinates     WarningKind = "bad_coordinates"
	WarnDuplicateCoverage  WarningKind = "duplicate_coverage"
	WarnBadSectionCode     WarningKind = "bad_section_code"
	WarnNoNeighbourhood    WarningKind = "no_neighbourhood"
	WarnUnknownCategory    WarningKind = "unknown_category"
	WarnBadReferenceYear   WarningKind = "bad_reference_year"
	WarnUnprojectableShape WarningKind = "unprojectable_shape"
)

// Warning is a DataQualityWarning: the affected row is skipped or null-filled
// and the batch continues.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Row    int         `json:"row"`
	Detail string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at row %d: %s", w.Kind, w.Row, w.Detail)
}
