package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdx-library/patronload/internal/app"
	"github.com/pdx-library/patronload/internal/notify"
	"github.com/pdx-library/patronload/internal/version"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "run":
		os.Exit(runLoad(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runLoad(ctx context.Context, args []string) int {
	env, err := loadEnvDefaults()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var cfg app.Config
	var recipients string
	var smtpHost string
	var from string

	fs.StringVar(&cfg.ExtractPath, "extract", "", "Today's patron extract CSV (ISO 8859-1)")
	fs.StringVar(&cfg.PreviousPath, "previous", "", "Most recent prior extract CSV; omit to skip group-change analysis")
	fs.StringVar(&cfg.DepartmentsPath, "departments", "", "Department reference CSV (code,label)")
	fs.StringVar(&cfg.ZipCodesPath, "zipcodes", "", "Local (non-distance) zip codes file, one per line")
	fs.StringVar(&cfg.RulesPath, "rules", "", "Institutional rules YAML; omit for compiled-in defaults")
	fs.StringVar(&cfg.TemplatePath, "template", "", "Userdata XML template; omit for the embedded default")
	fs.StringVar(&cfg.OutputDir, "output", ".", "Output folder for userdata XML and side-channel CSVs")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", env.chunkSize, "Maximum patrons per userdata file (env: CHUNK_SIZE)")
	fs.StringVar(&recipients, "recipients", "", "Comma-separated email notice recipient(s)")
	fs.StringVar(&smtpHost, "smtp-host", env.smtpHost, "SMTP relay host (env: SMTP_HOST)")
	fs.StringVar(&from, "from", env.returnAddress, "Notice return address (env: RETURN_ADDRESS)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if cfg.ExtractPath == "" || cfg.DepartmentsPath == "" || cfg.ZipCodesPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "run requires --extract, --departments and --zipcodes")
		return 2
	}
	noticeRecipients := splitRecipients(recipients)
	if len(noticeRecipients) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "email notice recipients missing")
		usage(os.Stderr)
		return 2
	}

	mailer := notify.Mailer{
		Host:       smtpHost,
		From:       from,
		Recipients: noticeRecipients,
	}

	if err := app.Run(ctx, cfg, mailer); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "run failed: %s\n", err)
		return 1
	}
	return 0
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

type envDefaults struct {
	chunkSize     int
	smtpHost      string
	returnAddress string
}

func loadEnvDefaults() (envDefaults, error) {
	chunkSize, err := envInt("CHUNK_SIZE", 10000)
	if err != nil {
		return envDefaults{}, err
	}
	return envDefaults{
		chunkSize:     chunkSize,
		smtpHost:      envString("SMTP_HOST", "mailhost.pdx.edu"),
		returnAddress: envString("RETURN_ADDRESS", "Patron Load <patronload@www.lib.pdx.edu>"),
	}, nil
}

func envString(varName, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		return v
	}
	return fallback
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `patronload %s: nightly patron extract load

Usage:
  patronload <command> [flags]

Commands:
  run   Normalize today's extract, analyze changes, write userdata files

Examples:
  patronload run --extract tmp/patrondata-20240201.csv \
    --previous tmp/patrondata-20240131.csv \
    --departments tmp/departments.csv \
    --zipcodes tmp/non-distance-zipcodes.txt \
    --output tmp \
    --recipients ops@lib.example.edu

Environment:
  CHUNK_SIZE      Maximum patrons per userdata file (default 10000)
  SMTP_HOST       SMTP relay for the anomaly notice
  RETURN_ADDRESS  Notice return address

`, version.Current)
}
