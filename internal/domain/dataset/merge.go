package dataset

import (
	"strings"
	"time"

	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

// Canonical metric columns of the merged dataset.
const (
	ColNewCases           = "new_cases"
	ColNewDeaths          = "new_deaths"
	ColPeopleVaccinated   = "people_vaccinated"
	ColNewTests           = "new_tests"
	ColDailyOccupancyHosp = "daily_occupancy_hosp"
)

// columnAlias maps a substring of a source column name to its canonical
// merged name. Entries are tried in order and the first assignment to a
// canonical column wins; later sources can never override it.
type columnAlias struct {
	substr    string
	canonical string
}

var mergeAliases = []columnAlias{
	{"new_cases", ColNewCases},
	{"newcases", ColNewCases},
	{"cases", ColNewCases},
	{"new_deaths", ColNewDeaths},
	{"newdeaths", ColNewDeaths},
	{"deaths", ColNewDeaths},
	{"people_vaccinated", ColPeopleVaccinated},
	{"peoplevaccinated", ColPeopleVaccinated},
	{"new_tests", ColNewTests},
	{"newtests", ColNewTests},
	{"daily_occupancy_hosp", ColDailyOccupancyHosp},
	{"dailyoccupancyhosp", ColDailyOccupancyHosp},
	{"hosp_patients", ColDailyOccupancyHosp},
	{"hospital_patients", ColDailyOccupancyHosp},
}

// auxiliaryColumns are guaranteed to exist on the merged table, zero
// filled when no source supplied them.
var auxiliaryColumns = []string{ColPeopleVaccinated, ColNewTests, ColDailyOccupancyHosp}

// Merge joins the normalized source families into one wide table keyed
// by (country, date). The cases/deaths table is the mandatory anchor;
// each optional table is left-joined so missing auxiliary data never
// drops a case observation. Rows lacking a resolvable country or date
// after the merge are discarded; this is the only stage that drops rows
// outright instead of repairing them.
func Merge(cases, vaccination, hospital, testing *Table) (*Table, error) {
	if cases == nil || cases.NumRows() == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInsufficientData,
			"cases/deaths table is required as the merge anchor", nil)
	}

	out := cases.Clone()
	leftJoin(out, vaccination, "_vax")
	leftJoin(out, hospital, "_hosp")
	leftJoin(out, testing, "_test")

	resolveAliases(out)

	for _, name := range auxiliaryColumns {
		if !out.HasColumn(name) {
			out.addColumn(name)
		}
		col := out.Column(name)
		for i, v := range col {
			if f, ok := CoerceFloat(v); ok {
				col[i] = f
			} else {
				col[i] = 0.0
			}
		}
	}

	dropUnkeyedRows(out)
	if out.NumRows() == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInsufficientData,
			"merged dataset has no rows with both country and date", nil)
	}
	return out, nil
}

// leftJoin attaches right's non-key columns onto left on (country,
// date). The first matching right row wins so the merged key stays
// unique. Conflicting column names take the source suffix.
func leftJoin(left, right *Table, suffix string) {
	if right == nil || right.NumRows() == 0 {
		return
	}
	if !right.HasColumn(CountryKey) || !right.HasColumn("date") {
		return
	}

	index := make(map[string]int, right.NumRows())
	for i := 0; i < right.NumRows(); i++ {
		key := joinKey(right.Value(CountryKey, i), right.Value("date", i))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	for _, name := range right.Columns() {
		if name == CountryKey || name == "date" {
			continue
		}
		target := name
		if left.HasColumn(target) {
			target = name + suffix
		}
		if left.HasColumn(target) {
			continue
		}
		left.addColumn(target)

		col := left.Column(target)
		src := right.Column(name)
		for i := 0; i < left.NumRows(); i++ {
			key := joinKey(left.Value(CountryKey, i), left.Value("date", i))
			if ri, ok := index[key]; ok && key != "" {
				col[i] = src[ri]
			}
		}
	}
}

func joinKey(country, date any) string {
	name, _ := country.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	switch d := date.(type) {
	case time.Time:
		return name + "|" + d.Format("2006-01-02")
	case string:
		if parsed, ok := ParseDate(d); ok {
			return name + "|" + parsed.Format("2006-01-02")
		}
	}
	return ""
}

// resolveAliases renames source columns onto the canonical metric names
// through the fixed priority table; first assignment wins.
func resolveAliases(t *Table) {
	for _, alias := range mergeAliases {
		if t.HasColumn(alias.canonical) {
			continue
		}
		for _, name := range t.Columns() {
			if strings.Contains(name, alias.substr) {
				t.RenameColumn(name, alias.canonical)
				break
			}
		}
	}
}

func dropUnkeyedRows(t *Table) {
	keep := make([]bool, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		keep[i] = joinKey(t.Value(CountryKey, i), t.Value("date", i)) != ""
	}
	t.filterRows(keep)
}
