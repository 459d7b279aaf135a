package dataset

import (
	"strings"
	"time"
)

// DetectNumericColumns probes every column and returns the ones whose
// non-missing values all coerce to numbers. The country key, date
// columns and explicitly excluded names are never considered numeric.
func DetectNumericColumns(t *Table, exclude ...string) []string {
	skip := map[string]bool{CountryKey: true}
	for _, name := range exclude {
		skip[name] = true
	}

	var numeric []string
	for _, name := range t.Columns() {
		if skip[name] {
			continue
		}
		col := t.Column(name)
		seen := 0
		ok := true
		for _, v := range col {
			if v == nil {
				continue
			}
			if _, isDate := v.(time.Time); isDate {
				ok = false
				break
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			if _, coerced := CoerceFloat(v); !coerced {
				ok = false
				break
			}
			seen++
		}
		if ok && seen > 0 {
			numeric = append(numeric, name)
		}
	}
	return numeric
}

// ExcludeCountries drops rows whose country is in the denylist. Feeds
// mix true countries with aggregates such as "World" or "Europe" that
// must not take part in per-country repair or the one-hot schema.
func ExcludeCountries(t *Table, denylist []string) *Table {
	out := t.Clone()
	col := out.Column(CountryKey)
	if col == nil || len(denylist) == 0 {
		return out
	}
	deny := make(map[string]bool, len(denylist))
	for _, name := range denylist {
		deny[strings.ToLower(name)] = true
	}
	keep := make([]bool, out.NumRows())
	for i, v := range col {
		s, _ := v.(string)
		keep[i] = !deny[strings.ToLower(strings.TrimSpace(s))]
	}
	out.filterRows(keep)
	return out
}

// EnforceTestTotals raises total_tests to at least new_tests per row.
// Reporting feeds occasionally publish a daily figure above the running
// total; the total is the one adjusted so both remain usable.
func EnforceTestTotals(t *Table) int {
	if !t.HasColumn("total_tests") || !t.HasColumn("new_tests") {
		return 0
	}
	totals := t.Column("total_tests")
	daily := t.Column("new_tests")
	fixed := 0
	for i := range totals {
		total, okT := totals[i].(float64)
		day, okD := daily[i].(float64)
		if okT && okD && total < day {
			totals[i] = day
			fixed++
		}
	}
	return fixed
}
