// Package extract reads the nightly registration extract: a header-keyed
// CSV encoded in ISO 8859-1, one row per patron.
package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/pdx-library/patronload/internal/patron"
)

// ReadRecords decodes and parses an extract stream into raw records keyed
// by header column name. Rows shorter than the header are padded with empty
// strings; extra cells are dropped. Real extracts carry both.
func ReadRecords(r io.Reader) ([]patron.RawRecord, error) {
	decoded := charmap.ISO8859_1.NewDecoder().Reader(r)

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("extract is empty: no header row")
		}
		return nil, fmt.Errorf("read extract header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var records []patron.RawRecord
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read extract row: %w", err)
		}
		row := make(patron.RawRecord, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		records = append(records, row)
	}
	return records, nil
}

// ReadFile reads an extract file from disk.
func ReadFile(path string) ([]patron.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadRecords(f)
}
