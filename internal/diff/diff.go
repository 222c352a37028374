// Package diff compares today's cohort against reference data and the most
// recent prior cohort.
package diff

import (
	"github.com/pdx-library/patronload/internal/cohort"
	"github.com/pdx-library/patronload/internal/refdata"
)

// NewDepartmentCodes returns the deduplicated department codes carried by
// today's cohort that are absent from the static department table, each
// listed once in barcode-sorted encounter order.
func NewDepartmentCodes(departments refdata.DepartmentCodeTable, today cohort.Cohort) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, barcode := range today.Barcodes() {
		code := today[barcode].DepartmentCode
		if code == "" {
			continue
		}
		if _, known := departments[code]; known || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}

// GroupChanges maps barcode to today's department code for every patron
// present in both cohorts whose department code changed. A barcode only in
// today's cohort is never flagged (a new account's department is trusted),
// and a record lacking a department code on either side is never flagged.
func GroupChanges(today, previous cohort.Cohort) map[string]string {
	changes := make(map[string]string)
	for barcode, p := range today {
		if p.DepartmentCode == "" {
			continue
		}
		prior, existed := previous[barcode]
		if !existed || prior.DepartmentCode == "" {
			continue
		}
		if p.DepartmentCode != prior.DepartmentCode {
			changes[barcode] = p.DepartmentCode
		}
	}
	return changes
}
