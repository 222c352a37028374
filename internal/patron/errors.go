package patron

import "fmt"

// Reason classifies why a row was rejected during normalization.
type Reason string

const (
	ReasonMissingUsername   Reason = "missing_username"
	ReasonUnknownPatronType Reason = "unknown_patron_type"
	ReasonMissingStreet     Reason = "missing_street_line1"
	ReasonMissingEmail      Reason = "missing_email"
)

// RowError is the single row-rejected error category. The cohort loader
// recovers it, logs it, and skips the row; it never fails a batch.
type RowError struct {
	Barcode string
	Reason  Reason

	// Detail carries the offending raw value where one exists (for example
	// the unrecognized patron type).
	Detail string
}

func (e *RowError) Error() string {
	if e == nil {
		return "row rejected"
	}
	if e.Detail != "" {
		return fmt.Sprintf("record %s rejected: %s (%s)", e.Barcode, e.Reason, e.Detail)
	}
	return fmt.Sprintf("record %s rejected: %s", e.Barcode, e.Reason)
}
