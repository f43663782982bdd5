// Package tiger downloads Census TIGER/Line census tract shapefiles and
// bulk-loads them into the PostGIS geo.census_tracts table that backs tract
// lookups and local centroids.
package tiger

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultYear is the TIGER/Line vintage loaded when none is given.
const DefaultYear = 2023

// FIPSCodes maps state abbreviation to 2-digit FIPS code for the 50 states,
// DC, and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// ResolveState accepts a state abbreviation (any case) or a 2-digit FIPS
// code and returns both.
func ResolveState(s string) (abbr, fips string, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if f, found := FIPSCodes[s]; found {
		return s, f, true
	}
	if a, found := abbrByFIPS[s]; found {
		return a, s, true
	}
	return "", "", false
}

// AllStateAbbrs returns a sorted list of every known state abbreviation.
func AllStateAbbrs() []string {
	abbrs := make([]string, 0, len(FIPSCodes))
	for abbr := range FIPSCodes {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)
	return abbrs
}

// TractURL builds the download URL for a state's census tract shapefile.
func TractURL(year int, stateFIPS string) string {
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip",
		year, year, stateFIPS,
	)
}
