// Package refdata loads the static reference tables every run depends on.
// A malformed or missing reference file is fatal: no patron can be
// classified against a partial table.
package refdata

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// DepartmentCodeTable maps department code to department label. Used
// read-only as a membership test by the differential analyzer.
type DepartmentCodeTable map[string]string

// ReadDepartmentCodes parses the two-column department reference table
// (header "code,label").
func ReadDepartmentCodes(r io.Reader) (DepartmentCodeTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	codeIdx, labelIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "code":
			codeIdx = i
		case "label":
			labelIdx = i
		}
	}
	if codeIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("department file must have %q and %q columns", "code", "label")
	}

	table := make(DepartmentCodeTable)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if codeIdx >= len(rec) || labelIdx >= len(rec) {
			return nil, fmt.Errorf("row has %d columns, want at least %d", len(rec), max(codeIdx, labelIdx)+1)
		}
		table[rec[codeIdx]] = rec[labelIdx]
	}
	return table, nil
}

// LoadDepartmentCodes reads the department reference file from disk.
func LoadDepartmentCodes(path string) (DepartmentCodeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open departments file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadDepartmentCodes(f)
}

// LocalZipSet is the sorted set of postal codes considered local service
// area; a patron whose zip falls outside it is a distance patron.
type LocalZipSet struct {
	zips []string
}

// ReadLocalZips parses the local-zip reference file, one code per line, no
// header. Blank lines are skipped.
func ReadLocalZips(r io.Reader) (LocalZipSet, error) {
	var zips []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		zips = append(zips, line)
	}
	if err := sc.Err(); err != nil {
		return LocalZipSet{}, fmt.Errorf("read zip codes: %w", err)
	}
	slices.Sort(zips)
	return LocalZipSet{zips: slices.Compact(zips)}, nil
}

// LoadLocalZips reads the local-zip reference file from disk.
func LoadLocalZips(path string) (LocalZipSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return LocalZipSet{}, fmt.Errorf("open zip codes file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadLocalZips(f)
}

// Contains reports whether zip is in the local set.
func (s LocalZipSet) Contains(zip string) bool {
	_, ok := slices.BinarySearch(s.zips, zip)
	return ok
}

// Len returns the number of codes in the set.
func (s LocalZipSet) Len() int {
	return len(s.zips)
}
