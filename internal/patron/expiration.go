package patron

import (
	"strings"
	"time"
)

// ExpirationDate maps a patron type and the current date to the account
// expiration date. Total function: unrecognized types take the two-year
// default so a bad input can never produce a zero date.
//
// The schedule is academic-calendar aware. Staff accounts renew across the
// June 30 fiscal boundary, faculty-like accounts always get two years, and
// student-like accounts expire shortly after the term they could plausibly
// be registered for on the load date.
func ExpirationDate(patronType string, today time.Time) time.Time {
	year := today.Year()
	base := strings.TrimSuffix(patronType, "-distance")

	switch base {
	case "staff":
		if today.Before(date(year, time.June, 1)) {
			return date(year+2, time.June, 30)
		}
		return date(year+1, time.June, 30)

	case "faculty", "gradasst", "emeritus", "enrolled-faculty":
		return date(year+2, time.June, 30)

	case "grad", "undergrad", "honors", "highschool":
		switch {
		case today.Before(date(year, time.March, 15)):
			return date(year, time.October, 20)
		case today.Before(date(year, time.June, 15)):
			return date(year, time.October, 20)
		case today.Before(date(year, time.September, 1)):
			return date(year+1, time.January, 31)
		case today.Before(date(year, time.December, 15)):
			return date(year+1, time.April, 25)
		default:
			return date(year+1, time.October, 20)
		}

	default:
		return date(year+2, time.June, 30)
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
