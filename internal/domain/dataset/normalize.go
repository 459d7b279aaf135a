package dataset

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// CountryKey is the canonical identity column every extract is keyed on.
const CountryKey = "country"

// DefaultCountryAliases are the raw column names recognized as country
// identity, in priority order.
var DefaultCountryAliases = []string{"country", "location", "entity"}

var nonAlnum = regexp.MustCompile(`[^0-9a-z]+`)

// CanonicalColumnName lowercases a raw column name and collapses every
// run of non-alphanumeric characters into a single underscore. The
// function is idempotent.
func CanonicalColumnName(name string) string {
	canon := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(canon, "_")
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses a cell into a UTC calendar date using the layouts
// seen across the source feeds. Returns false when unparseable.
func ParseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Truncate(24 * time.Hour), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d.UTC().Truncate(24 * time.Hour), true
			}
		}
	}
	return time.Time{}, false
}

// Normalize canonicalizes a raw extract: column names are rewritten to
// canonical form, the first country-identity alias becomes the single
// "country" column (keeping its position), date-like columns are parsed
// into calendar dates with unparseable cells turned into explicit
// missing values, and columns that are missing across all rows are
// dropped. Sibling column order is preserved.
//
// countryAliases may be nil, in which case DefaultCountryAliases apply.
// A table with no resolvable identity column fails with a schema_error.
func Normalize(t *Table, countryAliases []string) (*Table, error) {
	if countryAliases == nil {
		countryAliases = DefaultCountryAliases
	}
	out := t.Clone()

	for _, raw := range out.Columns() {
		out.RenameColumn(raw, CanonicalColumnName(raw))
	}

	if !out.HasColumn(CountryKey) {
	identity:
		for _, alias := range countryAliases {
			for _, name := range out.Columns() {
				if strings.Contains(name, alias) {
					out.RenameColumn(name, CountryKey)
					break identity
				}
			}
		}
	}
	if !out.HasColumn(CountryKey) {
		return nil, apperrors.Wrap(apperrors.CodeSchemaError,
			fmt.Sprintf("no country identity column found, expected one of %v", countryAliases), nil)
	}

	for _, name := range out.Columns() {
		if name != CountryKey && (strings.Contains(name, "date") || strings.Contains(name, "timestamp")) {
			col := out.Column(name)
			for i, v := range col {
				if v == nil {
					continue
				}
				if d, ok := ParseDate(v); ok {
					col[i] = d
				} else {
					col[i] = nil
				}
			}
		}
	}

	for _, name := range out.Columns() {
		if allMissing(out.Column(name)) {
			out.DropColumn(name)
		}
	}

	return out, nil
}

// ParseDateColumn coerces a column into calendar dates in place.
// Tables rebuilt from stored records carry dates as strings; repair and
// merge need them typed to sort and join correctly.
func ParseDateColumn(t *Table, name string) {
	col := t.Column(name)
	for i, v := range col {
		if v == nil {
			continue
		}
		if d, ok := ParseDate(v); ok {
			col[i] = d
		} else {
			col[i] = nil
		}
	}
}

func allMissing(col []any) bool {
	for _, v := range col {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}
