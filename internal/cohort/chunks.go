package cohort

import "iter"

// Chunks yields sub-cohorts of at most size entries, every entry appearing
// exactly once across the sequence. Chunk membership follows sorted barcode
// order; the grouping only exists to bound output-artifact size.
func Chunks(c Cohort, size int) iter.Seq[Cohort] {
	return func(yield func(Cohort) bool) {
		if size <= 0 {
			return
		}
		barcodes := c.Barcodes()
		for start := 0; start < len(barcodes); start += size {
			end := min(start+size, len(barcodes))
			chunk := make(Cohort, end-start)
			for _, barcode := range barcodes[start:end] {
				chunk[barcode] = c[barcode]
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
