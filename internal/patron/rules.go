package patron

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the institutional rule set injected into normalization. Every
// table lookup the normalizer performs goes through this value, so one
// institution's rules never leak into another's tests.
type Rules struct {
	// CampusPhonePrefix distinguishes office from home phone numbers by
	// substring match against the normalized number.
	CampusPhonePrefix string `yaml:"campus_phone_prefix"`

	// CampusEmailDomain distinguishes work from personal email addresses by
	// suffix match.
	CampusEmailDomain string `yaml:"campus_email_domain"`

	// PatronTypes maps the raw extract `patron` value to the base patron
	// type. A raw value absent from this table rejects the row.
	PatronTypes map[string]string `yaml:"patron_types"`

	// Coadmits maps the raw coadmit program name to its code. A raw value
	// absent from this table is silently omitted, not rejected.
	Coadmits map[string]string `yaml:"coadmits"`
}

// DefaultRules returns the compiled-in rule set.
func DefaultRules() Rules {
	return Rules{
		CampusPhonePrefix: "503-725-",
		CampusEmailDomain: "pdx.edu",
		PatronTypes: map[string]string{
			"FACULTY":          "faculty",
			"ENROLLED-FACULTY": "enrolled-faculty",
			"EMERITUS":         "emeritus",
			"GRADASSISTANT":    "gradasst",
			"GRADUATE":         "grad",
			"HONOR":            "honors",
			"UNDERGRADUATE":    "undergrad",
			"HIGHSCHOOL":       "highschool",
			"STAFF":            "staff",
		},
		Coadmits: map[string]string{
			"Coadmit - Clackamas CC":  "COAD - CLCC",
			"Coadmit - Mt Hood CC":    "COAD - MHCC",
			"Coadmit - Portland CC":   "COAD - PCC",
			"Coadmit - Chemeketa CC":  "COAD - CHMK CC",
			"Coadmit - Clatsop CC":    "COAD - CCC",
			"Coadmit - Clark College": "COAD - CLARK",
			"Coadmit - PostBac":       "COAD - PostBac",
		},
	}
}

// LoadRules reads a rule-set YAML file. Fields omitted from the file keep
// their defaults, so a partial override file is valid.
func LoadRules(path string) (Rules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules YAML: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) validate() error {
	if strings.TrimSpace(r.CampusPhonePrefix) == "" {
		return fmt.Errorf("rules: campus_phone_prefix is required")
	}
	if strings.TrimSpace(r.CampusEmailDomain) == "" {
		return fmt.Errorf("rules: campus_email_domain is required")
	}
	if len(r.PatronTypes) == 0 {
		return fmt.Errorf("rules: patron_types table is required")
	}
	return nil
}
