package coverage

import (
	"regexp"
	"strings"
)

var zipRe = regexp.MustCompile(`^\d{5}$`)

// Kind is the parsed category of a campaign's location string.
type Kind string

const (
	KindZip   Kind = "zip"
	KindCity  Kind = "city"
	KindState Kind = "state"
)

// Location is the parsed form of a campaign's location string. State holds
// the 2-letter USPS code when the input names or abbreviates one.
type Location struct {
	Kind  Kind
	Zip   string
	City  string
	State string
	Raw   string
}

// stateByName maps lowercase US state names to USPS codes.
var stateByName = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"puerto rico":          "PR",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
}

// stateCode resolves a state name or 2-letter code to its USPS code.
func stateCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if code, ok := stateByName[strings.ToLower(s)]; ok {
		return code, true
	}
	if len(s) == 2 {
		up := strings.ToUpper(s)
		for _, code := range stateByName {
			if code == up {
				return up, true
			}
		}
	}
	return "", false
}

// Classify parses a free-text location into a ZIP, state, or city target.
// A bare 5-digit string is a ZIP. A string that is exactly a state name or
// code is a state. Everything else is a city; a recognised ", ST" suffix
// is split off into State, unrecognised suffixes stay part of the city.
func Classify(raw string) Location {
	trimmed := strings.TrimSpace(raw)
	loc := Location{Raw: trimmed}

	if zipRe.MatchString(trimmed) {
		loc.Kind = KindZip
		loc.Zip = trimmed
		return loc
	}

	if code, ok := stateCode(trimmed); ok {
		loc.Kind = KindState
		loc.State = code
		return loc
	}

	loc.Kind = KindCity
	loc.City = trimmed
	if idx := strings.LastIndex(trimmed, ","); idx > 0 {
		if code, ok := stateCode(trimmed[idx+1:]); ok {
			loc.City = strings.TrimSpace(trimmed[:idx])
			loc.State = code
		}
	}
	return loc
}

// Label renders the location for prompts and logs.
func (l Location) Label() string {
	switch l.Kind {
	case KindZip:
		return l.Zip
	case KindState:
		return l.State
	default:
		if l.State != "" {
			return l.City + ", " + l.State
		}
		return l.City
	}
}
