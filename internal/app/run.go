// Package app orchestrates one nightly patron load.
package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pdx-library/patronload/internal/cohort"
	"github.com/pdx-library/patronload/internal/diff"
	"github.com/pdx-library/patronload/internal/extract"
	"github.com/pdx-library/patronload/internal/notify"
	"github.com/pdx-library/patronload/internal/patron"
	"github.com/pdx-library/patronload/internal/refdata"
	"github.com/pdx-library/patronload/internal/render"
)

const (
	groupChangesFilename   = "group-changes.csv"
	newDepartmentsFilename = "new-departments.csv"
)

// Notifier delivers the per-run anomaly notice.
type Notifier interface {
	Send(ctx context.Context, n notify.Notice) error
}

// Config is everything one run needs. Reference-data paths are mandatory;
// PreviousPath, RulesPath, and TemplatePath may be empty (skip differencing,
// default rules, embedded template).
type Config struct {
	ExtractPath     string
	PreviousPath    string
	DepartmentsPath string
	ZipCodesPath    string
	RulesPath       string
	TemplatePath    string
	OutputDir       string
	ChunkSize       int
	Debug           bool

	// Today overrides the load date; zero means the current date. Exists
	// for tests and reruns of a prior day's extract.
	Today time.Time
}

// Run executes the full pipeline: reference data, cohort load,
// differential analysis, output artifacts, notice. Row-scoped failures are
// logged and skipped; any error returned here is run-fatal.
func Run(ctx context.Context, cfg Config, notifier Notifier) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logf := func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		logger.Printf("run=%s "+format, prefix...)
	}
	debugf := func(format string, args ...any) {
		if cfg.Debug {
			logf(format, args...)
		}
	}
	runStart := time.Now()

	today := cfg.Today
	if today.IsZero() {
		now := time.Now()
		today = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10000
	}

	rules := patron.DefaultRules()
	if cfg.RulesPath != "" {
		var err error
		rules, err = patron.LoadRules(cfg.RulesPath)
		if err != nil {
			return err
		}
	}

	departments, err := refdata.LoadDepartmentCodes(cfg.DepartmentsPath)
	if err != nil {
		return err
	}
	zips, err := refdata.LoadLocalZips(cfg.ZipCodesPath)
	if err != nil {
		return err
	}
	debugf("reference data loaded: %d departments, %d local zips", len(departments), zips.Len())

	loadStart := time.Now()
	records, err := extract.ReadFile(cfg.ExtractPath)
	if err != nil {
		return err
	}
	result := cohort.Load(records, zips, rules, today)
	for _, rej := range result.Rejected {
		if rej.Detail != "" {
			logf("skipped record %s: %s (%s)", rej.Barcode, rej.Reason, rej.Detail)
		} else {
			logf("skipped record %s: %s", rej.Barcode, rej.Reason)
		}
	}
	if result.Duplicates > 0 {
		logf("extract contained %d duplicate barcodes (last row wins)", result.Duplicates)
	}
	logf("loaded %d of %d records in %s", len(result.Patrons), len(records), time.Since(loadStart).Round(time.Millisecond))

	newCodes := diff.NewDepartmentCodes(departments, result.Patrons)
	collisions := result.Patrons.NameCollisions()
	for _, barcode := range collisions {
		logf("first name equals last name for record %s", barcode)
	}

	groupChanges := map[string]string{}
	if cfg.PreviousPath != "" {
		prevRecords, err := extract.ReadFile(cfg.PreviousPath)
		if err != nil {
			return fmt.Errorf("previous extract: %w", err)
		}
		prevResult := cohort.Load(prevRecords, zips, rules, today)
		groupChanges = diff.GroupChanges(result.Patrons, prevResult.Patrons)
		for barcode, dept := range groupChanges {
			debugf("record %s moved to department %s", barcode, dept)
		}
		logf("differential: %d group changes against %d prior records", len(groupChanges), len(prevResult.Patrons))
	} else {
		logf("no previous extract given; skipping group-change analysis")
	}

	if err := writeGroupChanges(filepath.Join(cfg.OutputDir, groupChangesFilename), groupChanges); err != nil {
		return err
	}
	if err := writeNewDepartments(filepath.Join(cfg.OutputDir, newDepartmentsFilename), newCodes); err != nil {
		return err
	}

	tmpl, err := render.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return err
	}
	paths, err := render.WriteChunks(cfg.OutputDir, tmpl, result.Patrons, cfg.ChunkSize)
	if err != nil {
		return err
	}
	for _, path := range paths {
		debugf("wrote %s", path)
	}
	logf("wrote %d userdata files for %d records", len(paths), len(result.Patrons))

	notice := notify.Notice{NewDepartmentCodes: newCodes, NameCollisions: collisions}
	if !notice.Empty() && notifier != nil {
		if err := notifier.Send(ctx, notice); err != nil {
			return err
		}
		logf("notice sent: %d new department codes", len(newCodes))
	}

	logf("run complete in %s", time.Since(runStart).Round(time.Millisecond))
	return nil
}

func writeGroupChanges(path string, changes map[string]string) error {
	return writeCSV(path, []string{"barcode", "department"}, func(w *csv.Writer) error {
		// Sorted for stable artifacts.
		barcodes := make([]string, 0, len(changes))
		for barcode := range changes {
			barcodes = append(barcodes, barcode)
		}
		slices.Sort(barcodes)
		for _, barcode := range barcodes {
			if err := w.Write([]string{barcode, changes[barcode]}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeNewDepartments(path string, codes []string) error {
	return writeCSV(path, []string{"code"}, func(w *csv.Writer) error {
		for _, code := range codes {
			if err := w.Write([]string{code}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, header []string, body func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := body(w); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
