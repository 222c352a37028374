package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pdx-library/patronload/internal/alma"
	"github.com/pdx-library/patronload/internal/version"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("changegroup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	groupName := fs.String("group-name", "expired", "Assign the account(s) to this group")
	apiKey := fs.String("api-key", strings.TrimSpace(os.Getenv("ALMA_API_KEY")), "Users API key (env: ALMA_API_KEY)")
	baseURL := fs.String("base-url", strings.TrimSpace(os.Getenv("ALMA_API_BASE_URL")), "API base URL (env: ALMA_API_BASE_URL)")
	fromCSV := fs.String("from-csv", "", "Apply every change in a group-changes.csv instead of one barcode")
	maxRetries := fs.Int("max-retries", 3, "Max retries per record for transient failures")
	rateLimitRPS := fs.Float64("rate-limit-rps", 0, "Request rate limit (RPS), 0 disables")
	verbose := fs.Bool("verbose", false, "Display actions taken on the account")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *apiKey == "" {
		_, _ = fmt.Fprintln(os.Stderr, "changegroup requires --api-key")
		usage(os.Stderr)
		return 2
	}

	client, err := alma.NewClient(*baseURL, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "client error: %s\n", err)
		return 2
	}

	if *fromCSV != "" {
		if fs.NArg() != 0 {
			_, _ = fmt.Fprintln(os.Stderr, "--from-csv takes no barcode argument")
			return 2
		}
		return runBatch(ctx, client, *fromCSV, alma.ApplyOptions{
			MaxRetries:   *maxRetries,
			RateLimitRPS: *rateLimitRPS,
		}, *verbose)
	}

	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(os.Stderr, "changegroup requires exactly one barcode")
		usage(os.Stderr)
		return 2
	}
	barcode := fs.Arg(0)

	if *verbose {
		_, _ = fmt.Fprintf(os.Stdout, "reassigning patron with barcode %q to group %q\n", barcode, *groupName)
	}
	if err := client.ReassignGroup(ctx, barcode, *groupName); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "reassign failed: %s\n", err)
		return 1
	}
	return 0
}

// runBatch applies every change from a patronload group-changes.csv. The
// department code becomes the new group name, matching the load's account
// groups.
func runBatch(ctx context.Context, client *alma.Client, path string, opts alma.ApplyOptions, verbose bool) int {
	changes, err := readGroupChanges(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read changes: %s\n", err)
		return 2
	}
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "no group changes to apply")
		return 0
	}

	start := time.Now()
	results, err := alma.ApplyGroupChanges(ctx, client, changes, opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch aborted: %s\n", err)
		return 1
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			_, _ = fmt.Fprintf(os.Stderr, "barcode %s: %s\n", res.Barcode, res.Err)
			continue
		}
		if verbose {
			_, _ = fmt.Fprintf(os.Stdout, "barcode %s reassigned to %s\n", res.Barcode, res.Group)
		}
	}
	_, _ = fmt.Fprintf(os.Stdout, "applied %d of %d group changes in %s\n", len(results)-failed, len(results), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return 1
	}
	return 0
}

func readGroupChanges(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	barcodeIdx, deptIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "barcode":
			barcodeIdx = i
		case "department":
			deptIdx = i
		}
	}
	if barcodeIdx < 0 || deptIdx < 0 {
		return nil, fmt.Errorf("file must have %q and %q columns", "barcode", "department")
	}

	changes := make(map[string]string)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if barcodeIdx >= len(rec) || deptIdx >= len(rec) {
			return nil, fmt.Errorf("row has %d columns, want at least %d", len(rec), max(barcodeIdx, deptIdx)+1)
		}
		changes[rec[barcodeIdx]] = rec[deptIdx]
	}
	return changes, nil
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `changegroup %s: change the group of a library-management user

Usage:
  changegroup [flags] barcode
  changegroup [flags] --from-csv group-changes.csv

Examples:
  changegroup --api-key $ALMA_API_KEY 100200300
  changegroup --api-key $ALMA_API_KEY --group-name staff 100200300
  changegroup --api-key $ALMA_API_KEY --from-csv tmp/group-changes.csv --rate-limit-rps 5

Environment:
  ALMA_API_KEY       Users API key
  ALMA_API_BASE_URL  API base URL (default %s)

`, version.Current, alma.DefaultBaseURL)
}
