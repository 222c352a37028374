// Package cohort builds and analyzes the keyed set of classified patrons
// from one day's extract.
package cohort

import (
	"errors"
	"slices"
	"time"

	"github.com/pdx-library/patronload/internal/patron"
	"github.com/pdx-library/patronload/internal/refdata"
)

// Cohort maps barcode to classified patron for one extract.
type Cohort map[string]patron.Patron

// Rejection records one row the loader skipped.
type Rejection struct {
	Barcode string
	Reason  patron.Reason
	Detail  string
}

// LoadResult is the outcome of loading one extract. Rejected rows never
// fail a load; they are returned for the caller to log.
type LoadResult struct {
	Patrons  Cohort
	Rejected []Rejection

	// Duplicates counts rows whose barcode overwrote an earlier row.
	// Last-write-wins is the preserved upstream behavior; the count exists
	// so the data-quality gap is visible.
	Duplicates int
}

// Load normalizes every raw record into a Cohort. A record is a distance
// patron when its zip is present and its first five characters are not in
// the local set. Per-row failures are collected, never raised; a load with
// zero usable rows returns an empty, valid Cohort.
func Load(records []patron.RawRecord, zips refdata.LocalZipSet, rules patron.Rules, today time.Time) LoadResult {
	result := LoadResult{Patrons: make(Cohort, len(records))}

	for _, rec := range records {
		zip := rec["zip_1"]
		if len(zip) > 5 {
			zip = zip[:5]
		}
		isDistance := zip != "" && !zips.Contains(zip)

		p, err := rules.Normalize(rec, isDistance, today)
		if err != nil {
			var rowErr *patron.RowError
			if errors.As(err, &rowErr) {
				result.Rejected = append(result.Rejected, Rejection{
					Barcode: rowErr.Barcode,
					Reason:  rowErr.Reason,
					Detail:  rowErr.Detail,
				})
				continue
			}
			// Normalize only returns RowError today; treat anything else
			// as a rejection too rather than abort the batch.
			result.Rejected = append(result.Rejected, Rejection{Barcode: rec["id_number"], Detail: err.Error()})
			continue
		}

		if _, seen := result.Patrons[p.Barcode]; seen {
			result.Duplicates++
		}
		result.Patrons[p.Barcode] = p
	}
	return result
}

// Barcodes returns the cohort's keys in sorted order, the iteration order
// used by every deterministic pass over a cohort.
func (c Cohort) Barcodes() []string {
	keys := make([]string, 0, len(c))
	for barcode := range c {
		keys = append(keys, barcode)
	}
	slices.Sort(keys)
	return keys
}

// NameCollisions returns the barcodes whose first name exactly equals the
// last name, a heuristic for upstream data-entry errors. Reported, never
// blocking.
func (c Cohort) NameCollisions() []string {
	var issues []string
	for _, barcode := range c.Barcodes() {
		p := c[barcode]
		if p.FirstName == p.LastName {
			issues = append(issues, barcode)
		}
	}
	return issues
}
