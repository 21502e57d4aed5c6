package sanitize

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Reason names the structural limit an upload breached.
type Reason string

const (
	ReasonFileSize  Reason = "file_too_large"
	ReasonRows      Reason = "too_many_rows"
	ReasonColumns   Reason = "too_many_columns"
	ReasonEmpty     Reason = "empty_file"
	ReasonMalformed Reason = "malformed_csv"
)

// Reasons lists every violation reason.
func Reasons() []Reason {
	return []Reason{ReasonFileSize, ReasonRows, ReasonColumns, ReasonEmpty, ReasonMalformed}
}

// StructuralViolation rejects a whole upload.
type StructuralViolation struct {
	Reason Reason
	Limit  int64
	Actual int64
	// Detail carries parser output for malformed files.
	Detail string
}

func (v *StructuralViolation) Error() string {
	switch v.Reason {
	case ReasonFileSize:
		return fmt.Sprintf("file too large: %s exceeds the %s limit",
			humanize.IBytes(uint64(v.Actual)), humanize.IBytes(uint64(v.Limit)))
	case ReasonRows:
		return fmt.Sprintf("too many rows: %d athletes exceeds the limit of %d", v.Actual, v.Limit)
	case ReasonColumns:
		return fmt.Sprintf("too many columns: %d exceeds the limit of %d", v.Actual, v.Limit)
	case ReasonEmpty:
		return "csv file is empty"
	case ReasonMalformed:
		return "malformed csv: " + v.Detail
	}
	return string(v.Reason)
}

// Is lets errors.Is match ErrStructuralViolation.
func (v *StructuralViolation) Is(target error) bool {
	return target == ErrStructuralViolation
}

// Limits bounds the shape of an upload.
type Limits struct {
	MaxRows    int
	MaxColumns int
	MaxBytes   int64
}

// DefaultLimits returns 500 rows, 50 columns and 10 MiB.
func DefaultLimits() Limits {
	return Limits{
		MaxRows:    DefaultMaxRows,
		MaxColumns: DefaultMaxColumns,
		MaxBytes:   DefaultMaxUploadBytes,
	}
}

// CheckSize rejects uploads above MaxBytes.
func (l Limits) CheckSize(n int64) error {
	if l.MaxBytes > 0 && n > l.MaxBytes {
		return &StructuralViolation{Reason: ReasonFileSize, Limit: l.MaxBytes, Actual: n}
	}
	return nil
}

// CheckColumns rejects rows wider than MaxColumns.
func (l Limits) CheckColumns(n int) error {
	if l.MaxColumns > 0 && n > l.MaxColumns {
		return &StructuralViolation{Reason: ReasonColumns, Limit: int64(l.MaxColumns), Actual: int64(n)}
	}
	return nil
}

// CheckRows rejects uploads with more than MaxRows data rows.
func (l Limits) CheckRows(n int) error {
	if l.MaxRows > 0 && n > l.MaxRows {
		return &StructuralViolation{Reason: ReasonRows, Limit: int64(l.MaxRows), Actual: int64(n)}
	}
	return nil
}
