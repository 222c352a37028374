package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdx-library/patronload/internal/app"
	"github.com/pdx-library/patronload/internal/notify"
)

type captureNotifier struct {
	sent []notify.Notice
}

func (c *captureNotifier) Send(_ context.Context, n notify.Notice) error {
	c.sent = append(c.sent, n)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const extractHeader = "id_number,patron,first_name,last_name,street_line1,city_1,state_1,zip_1,email,stu_username,orgn_desc"

func testConfig(t *testing.T, extractRows, previousRows []string) (app.Config, string) {
	t.Helper()
	dir := t.TempDir()
	outDir := t.TempDir()

	cfg := app.Config{
		ExtractPath:     writeFile(t, dir, "patrondata.csv", strings.Join(append([]string{extractHeader}, extractRows...), "\n")+"\n"),
		DepartmentsPath: writeFile(t, dir, "departments.csv", "code,label\nBIO,Biology\nART,Art\n"),
		ZipCodesPath:    writeFile(t, dir, "zips.txt", "97201\n97202\n"),
		OutputDir:       outDir,
		ChunkSize:       2,
		Today:           time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
	if previousRows != nil {
		cfg.PreviousPath = writeFile(t, dir, "previous.csv", strings.Join(append([]string{extractHeader}, previousRows...), "\n")+"\n")
	}
	return cfg, outDir
}

func TestRun(t *testing.T) {
	rows := []string{
		"100,UNDERGRADUATE,Ada,Lovelace,1825 SW Broadway,Portland,OR,97201,ada@pdx.edu,ada,CHEM Chemistry",
		"200,FACULTY,Joe,Doe,1825 SW Broadway,Portland,OR,97201,joe@pdx.edu,joe,ART Art",
		"300,STAFF,Sam,Sam,1825 SW Broadway,Portland,OR,97201,sam@pdx.edu,sam,BIO Biology",
		"400,UNDERGRADUATE,Bad,Row,,Portland,OR,97201,bad@pdx.edu,bad,",
	}
	previous := []string{
		"100,UNDERGRADUATE,Ada,Lovelace,1825 SW Broadway,Portland,OR,97201,ada@pdx.edu,ada,BIO Biology",
	}
	cfg, outDir := testConfig(t, rows, previous)

	notifier := &captureNotifier{}
	if err := app.Run(context.Background(), cfg, notifier); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("writes chunked userdata files", func(t *testing.T) {
		b1, err := os.ReadFile(filepath.Join(outDir, "1-userdata.xml"))
		if err != nil {
			t.Fatalf("missing first chunk: %v", err)
		}
		b2, err := os.ReadFile(filepath.Join(outDir, "2-userdata.xml"))
		if err != nil {
			t.Fatalf("missing second chunk: %v", err)
		}
		combined := string(b1) + string(b2)
		for _, want := range []string{"<primary_id>ada</primary_id>", "<primary_id>joe</primary_id>", "<primary_id>sam</primary_id>"} {
			if !strings.Contains(combined, want) {
				t.Fatalf("output missing %q", want)
			}
		}
		if strings.Contains(combined, "bad") {
			t.Fatalf("rejected row leaked into output")
		}
	})

	t.Run("writes group changes", func(t *testing.T) {
		b, err := os.ReadFile(filepath.Join(outDir, "group-changes.csv"))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "barcode,department\n100,CHEM\n" {
			t.Fatalf("unexpected group changes: %q", b)
		}
	})

	t.Run("writes new departments", func(t *testing.T) {
		b, err := os.ReadFile(filepath.Join(outDir, "new-departments.csv"))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "code\nCHEM\n" {
			t.Fatalf("unexpected new departments: %q", b)
		}
	})

	t.Run("sends one notice carrying the anomalies", func(t *testing.T) {
		if len(notifier.sent) != 1 {
			t.Fatalf("expected 1 notice, got %d", len(notifier.sent))
		}
		n := notifier.sent[0]
		if len(n.NewDepartmentCodes) != 1 || n.NewDepartmentCodes[0] != "CHEM" {
			t.Fatalf("unexpected codes: %#v", n.NewDepartmentCodes)
		}
		if len(n.NameCollisions) != 1 || n.NameCollisions[0] != "300" {
			t.Fatalf("unexpected collisions: %#v", n.NameCollisions)
		}
	})
}

func TestRunEmptyExtract(t *testing.T) {
	// Every row is unusable; the run must still complete with empty
	// artifacts and no notice.
	rows := []string{
		"100,UNDERGRADUATE,Ada,Lovelace,,Portland,OR,97201,ada@pdx.edu,ada,",
	}
	cfg, outDir := testConfig(t, rows, nil)

	notifier := &captureNotifier{}
	if err := app.Run(context.Background(), cfg, notifier); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.sent) != 0 {
		t.Fatalf("unexpected notice: %#v", notifier.sent)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "group-changes.csv"))
	if err != nil || string(b) != "barcode,department\n" {
		t.Fatalf("unexpected group changes (%v): %q", err, b)
	}
	if _, err := os.Stat(filepath.Join(outDir, "1-userdata.xml")); !os.IsNotExist(err) {
		t.Fatalf("no userdata file expected for an empty cohort")
	}
}

func TestRunFatalOnMissingReferenceData(t *testing.T) {
	cfg, _ := testConfig(t, nil, nil)
	cfg.DepartmentsPath = filepath.Join(t.TempDir(), "absent.csv")
	if err := app.Run(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error")
	}
}
