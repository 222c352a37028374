package cohort_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pdx-library/patronload/internal/cohort"
	"github.com/pdx-library/patronload/internal/extract"
	"github.com/pdx-library/patronload/internal/patron"
	"github.com/pdx-library/patronload/internal/refdata"
)

var testToday = time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

func testZips(t *testing.T) refdata.LocalZipSet {
	t.Helper()
	set, err := refdata.ReadLocalZips(strings.NewReader("97201\n97202\n"))
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func record(barcode string, overrides map[string]string) patron.RawRecord {
	rec := patron.RawRecord{
		"id_number":    barcode,
		"patron":       "UNDERGRADUATE",
		"first_name":   "Jane",
		"last_name":    "Doe",
		"street_line1": "1825 SW Broadway",
		"city_1":       "Portland",
		"state_1":      "OR",
		"zip_1":        "97201",
		"email":        "jdoe@pdx.edu",
		"stu_username": "jdoe",
	}
	for k, v := range overrides {
		rec[k] = v
	}
	return rec
}

func TestLoad(t *testing.T) {
	t.Run("skips rows missing mandatory fields and continues", func(t *testing.T) {
		records := []patron.RawRecord{
			record("100", nil),
			record("200", map[string]string{"street_line1": ""}),
			record("300", map[string]string{"email": ""}),
			record("400", map[string]string{"stu_username": ""}),
			record("500", map[string]string{"patron": "ALUMNI"}),
			record("600", nil),
		}
		result := cohort.Load(records, testZips(t), patron.DefaultRules(), testToday)

		if len(result.Patrons) != 2 {
			t.Fatalf("expected 2 patrons, got %d", len(result.Patrons))
		}
		if _, ok := result.Patrons["200"]; ok {
			t.Fatalf("row missing street_line1 must not appear in the cohort")
		}
		if len(result.Rejected) != 4 {
			t.Fatalf("expected 4 rejections, got %#v", result.Rejected)
		}
		reasons := map[string]patron.Reason{}
		for _, rej := range result.Rejected {
			reasons[rej.Barcode] = rej.Reason
		}
		want := map[string]patron.Reason{
			"200": patron.ReasonMissingStreet,
			"300": patron.ReasonMissingEmail,
			"400": patron.ReasonMissingUsername,
			"500": patron.ReasonUnknownPatronType,
		}
		for barcode, reason := range want {
			if reasons[barcode] != reason {
				t.Fatalf("barcode %s: got reason %q, want %q", barcode, reasons[barcode], reason)
			}
		}
	})

	t.Run("distance flag from zip against local set", func(t *testing.T) {
		records := []patron.RawRecord{
			record("100", map[string]string{"zip_1": "97201-1234"}),
			record("200", map[string]string{"zip_1": "99999"}),
			record("300", map[string]string{"zip_1": ""}),
		}
		result := cohort.Load(records, testZips(t), patron.DefaultRules(), testToday)

		if got := result.Patrons["100"].PatronType; got != "undergrad" {
			t.Fatalf("local zip: got %q", got)
		}
		if got := result.Patrons["200"].PatronType; got != "undergrad-distance" {
			t.Fatalf("distant zip: got %q", got)
		}
		if got := result.Patrons["300"].PatronType; got != "undergrad" {
			t.Fatalf("empty zip must not be distance: got %q", got)
		}
	})

	t.Run("duplicate barcodes are last-write-wins and counted", func(t *testing.T) {
		records := []patron.RawRecord{
			record("100", map[string]string{"first_name": "First"}),
			record("100", map[string]string{"first_name": "Second"}),
		}
		result := cohort.Load(records, testZips(t), patron.DefaultRules(), testToday)

		if len(result.Patrons) != 1 || result.Patrons["100"].FirstName != "Second" {
			t.Fatalf("unexpected cohort: %#v", result.Patrons)
		}
		if result.Duplicates != 1 {
			t.Fatalf("expected 1 duplicate, got %d", result.Duplicates)
		}
	})

	t.Run("zero usable rows is an empty cohort, not an error", func(t *testing.T) {
		records := []patron.RawRecord{
			record("100", map[string]string{"street_line1": ""}),
		}
		result := cohort.Load(records, testZips(t), patron.DefaultRules(), testToday)
		if len(result.Patrons) != 0 || len(result.Rejected) != 1 {
			t.Fatalf("unexpected result: %#v", result)
		}
	})
}

func TestLoadFromExtract(t *testing.T) {
	in := strings.Join([]string{
		"id_number,patron,first_name,last_name,street_line1,city_1,state_1,zip_1,email,stu_username,orgn_desc",
		"100,FACULTY,Ada,Lovelace,1825 SW Broadway,Portland,OR,97201,ada@pdx.edu,ada,MTH Mathematics",
		"200,UNDERGRADUATE,Joe,Doe,,Portland,OR,97202,joe@pdx.edu,joe,",
	}, "\n") + "\n"

	records, err := extract.ReadRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := cohort.Load(records, testZips(t), patron.DefaultRules(), testToday)

	if len(result.Patrons) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	p := result.Patrons["100"]
	if p.PatronType != "faculty" || p.DepartmentCode != "MTH" || p.AddressType != "work" {
		t.Fatalf("unexpected patron: %#v", p)
	}
}

func TestChunks(t *testing.T) {
	t.Run("splits evenly with remainder", func(t *testing.T) {
		c := make(cohort.Cohort, 25000)
		for i := 0; i < 25000; i++ {
			barcode := fmt.Sprintf("%08d", i)
			c[barcode] = patron.Patron{Barcode: barcode}
		}

		var sizes []int
		seen := make(map[string]bool, len(c))
		for chunk := range cohort.Chunks(c, 10000) {
			sizes = append(sizes, len(chunk))
			for barcode := range chunk {
				if seen[barcode] {
					t.Fatalf("barcode %s appeared in more than one chunk", barcode)
				}
				seen[barcode] = true
			}
		}

		if len(sizes) != 3 || sizes[0] != 10000 || sizes[1] != 10000 || sizes[2] != 5000 {
			t.Fatalf("unexpected chunk sizes: %v", sizes)
		}
		if len(seen) != len(c) {
			t.Fatalf("expected every key once, saw %d of %d", len(seen), len(c))
		}
	})

	t.Run("empty cohort yields no chunks", func(t *testing.T) {
		for range cohort.Chunks(cohort.Cohort{}, 10) {
			t.Fatalf("unexpected chunk")
		}
	})
}

func TestNameCollisions(t *testing.T) {
	c := cohort.Cohort{
		"100": {Barcode: "100", FirstName: "Doe", LastName: "Doe"},
		"200": {Barcode: "200", FirstName: "Jane", LastName: "Doe"},
		"300": {Barcode: "300", FirstName: "doe", LastName: "Doe"},
		"400": {Barcode: "400", FirstName: "Smith", LastName: "Smith"},
	}
	got := c.NameCollisions()
	if len(got) != 2 || got[0] != "100" || got[1] != "400" {
		t.Fatalf("unexpected collisions: %#v", got)
	}
}
