// Package patron derives classified library-management patron records from
// raw registration-extract rows.
package patron

import (
	"strings"
	"time"
)

// RawRecord is one extract row keyed by column name. Values may be empty;
// the record is read-only input.
type RawRecord map[string]string

// Patron is the normalized record, immutable once constructed.
type Patron struct {
	Barcode  string
	Username string

	FirstName  string
	MiddleName string
	LastName   string

	// PatronType is one of the nine base types, optionally suffixed
	// "-distance".
	PatronType string

	AddressLine1 string
	City         string
	State        string
	ZipCode      string
	AddressType  string

	Email            string
	EmailAddressType string

	Telephone      string
	TelephoneType  string
	Telephone2     string
	Telephone2Type string

	CoadmitCode    string
	DepartmentCode string

	ExpDate   time.Time
	PurgeDate time.Time
	StartDate time.Time
}

const purgeOffsetDays = 180

// Normalize derives a Patron from one raw record. isDistance reflects the
// caller's postal-code check against the local-zip set; today drives the
// expiration, purge, and start dates. Pure function of its inputs.
//
// A row missing stu_username or carrying an unrecognized patron value is
// rejected with a *RowError. Missing street_line1 and email are also
// rejected here so callers that skip the pre-filter still never construct
// an incomplete record.
func (r Rules) Normalize(rec RawRecord, isDistance bool, today time.Time) (Patron, error) {
	barcode := rec["id_number"]

	if rec["street_line1"] == "" {
		return Patron{}, &RowError{Barcode: barcode, Reason: ReasonMissingStreet}
	}
	if rec["email"] == "" {
		return Patron{}, &RowError{Barcode: barcode, Reason: ReasonMissingEmail}
	}
	if rec["stu_username"] == "" {
		return Patron{}, &RowError{Barcode: barcode, Reason: ReasonMissingUsername}
	}

	rawType := rec["patron"]
	baseType, ok := r.PatronTypes[rawType]
	if !ok {
		return Patron{}, &RowError{Barcode: barcode, Reason: ReasonUnknownPatronType, Detail: rawType}
	}

	p := Patron{
		Barcode:    barcode,
		Username:   rec["stu_username"],
		FirstName:  rec["first_name"],
		MiddleName: rec["middle_name"],
		LastName:   rec["last_name"],
	}
	if rec["pref_first_name"] != "" {
		p.FirstName = rec["pref_first_name"]
	}

	p.PatronType = baseType
	// High-school patrons are always local-service regardless of zip.
	if isDistance && rawType != "HIGHSCHOOL" {
		p.PatronType = baseType + "-distance"
	}

	if raw := rec["coadmit"]; raw != "" {
		// Unrecognized coadmit values are dropped without error; the loader
		// surfaces them as a diagnostic only.
		if code, ok := r.Coadmits[raw]; ok {
			p.CoadmitCode = code
		}
	}

	p.AddressLine1 = escapeMarkup(rec["street_line1"])
	p.City = rec["city_1"]
	p.State = rec["state_1"]
	p.ZipCode = firstN(rec["zip_1"], 5)

	switch {
	case p.PatronType == "faculty" || p.PatronType == "enrolled-faculty":
		p.AddressType = "work"
	case isDistance:
		p.AddressType = "home"
	default:
		p.AddressType = "school"
	}

	p.ExpDate = ExpirationDate(p.PatronType, today)
	p.PurgeDate = p.ExpDate.AddDate(0, 0, purgeOffsetDays)
	p.StartDate = today

	p.Email = rec["email"]
	if strings.HasSuffix(p.Email, r.CampusEmailDomain) {
		p.EmailAddressType = "work"
	} else {
		p.EmailAddressType = "personal"
	}

	if phone := rec["phone"]; phone != "" {
		p.Telephone = formatPhone(phone)
		p.TelephoneType = r.phoneType(p.Telephone)
	}
	if alt := rec["alt_phone"]; alt != "" && alt != rec["phone"] {
		p.Telephone2 = formatPhone(alt)
		p.Telephone2Type = r.phoneType(p.Telephone2)
	}

	if desc := rec["orgn_desc"]; desc != "" {
		p.DepartmentCode = strings.Split(desc, " ")[0]
	}

	return p, nil
}

func (r Rules) phoneType(formatted string) string {
	if strings.Contains(formatted, r.CampusPhonePrefix) {
		return "office"
	}
	return "home"
}

// formatPhone strips non-digit characters and hyphenates the first ten
// digits as AAA-BBB-CCCC. Inputs with fewer than ten digits produce a
// truncated string; that matches the upstream contract, which performs no
// length validation.
func formatPhone(raw string) string {
	var digits strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	return firstN(d, 3) + "-" + sliceN(d, 3, 6) + "-" + sliceN(d, 6, 10)
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sliceN(s string, lo, hi int) string {
	if lo > len(s) {
		return ""
	}
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}

// escapeMarkup escapes the characters with meaning in the rendered markup
// (&, <, >), leaving everything else untouched.
func escapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
