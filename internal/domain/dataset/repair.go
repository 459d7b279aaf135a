package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RepairReport records the corrections applied by Repair, per column,
// for observability.
type RepairReport struct {
	NegativesReset  map[string]int `json:"negatives_reset"`
	Interpolated    map[string]int `json:"interpolated"`
	ResidualFilled  map[string]int `json:"residual_filled"`
	OutliersClamped map[string]int `json:"outliers_clamped"`
	RowsDropped     int            `json:"rows_dropped"`
	DuplicatesDrop  int            `json:"duplicates_dropped"`
}

func newRepairReport() *RepairReport {
	return &RepairReport{
		NegativesReset:  map[string]int{},
		Interpolated:    map[string]int{},
		ResidualFilled:  map[string]int{},
		OutliersClamped: map[string]int{},
	}
}

// Repair cleans the numeric columns of a normalized table. The stage
// order is load-bearing: coercion first so sentinels become explicit
// missing values, negatives reset to missing before interpolation so a
// bogus zero never anchors a gap fill, per-country interpolation before
// residual zero fill, and outlier clipping computed over the already
// repaired distribution.
func Repair(t *Table, numericColumns []string) (*Table, *RepairReport) {
	out := t.Clone()
	report := newRepairReport()

	numeric := make([]string, 0, len(numericColumns))
	for _, name := range numericColumns {
		if out.HasColumn(name) && name != CountryKey {
			numeric = append(numeric, name)
		}
	}

	// 1. Coerce to numeric; unparseable cells become missing.
	for _, name := range numeric {
		col := out.Column(name)
		for i, v := range col {
			f, ok := CoerceFloat(v)
			if !ok {
				col[i] = nil
				continue
			}
			col[i] = f
		}
	}

	// 2. Negative values are invalid observations: reset to missing so
	// interpolation repairs them from the surrounding series.
	for _, name := range numeric {
		col := out.Column(name)
		for i, v := range col {
			if f, ok := v.(float64); ok && f < 0 {
				col[i] = nil
				report.NegativesReset[name]++
			}
		}
	}

	// 3. Per-country linear interpolation of interior gaps.
	interpolateByCountry(out, numeric, report)

	// 4. Residual fill: zeros for numerics, empty string for text.
	// Rows still lacking a country are dropped.
	fillResiduals(out, numeric, report)

	// 5. IQR clipping over the repaired distribution.
	clipOutliers(out, numeric, report)

	// 6. Full-row dedup so the corrections above cannot manufacture
	// artificial near-duplicates.
	report.DuplicatesDrop = dedupRows(out)

	addDerivedDateColumns(out)

	return out, report
}

// CoerceFloat converts a cell into a float64 where possible.
func CoerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// interpolateByCountry fills interior gaps in each numeric column by
// linear interpolation between the nearest valid neighbors within a
// single country's date-ordered series. Values never cross countries.
func interpolateByCountry(t *Table, numeric []string, report *RepairReport) {
	countryCol := t.Column(CountryKey)
	if countryCol == nil {
		return
	}
	dateCol := t.Column("date")

	groups := make(map[string][]int)
	var order []string
	for i, v := range countryCol {
		name, _ := v.(string)
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], i)
	}

	for _, country := range order {
		idx := groups[country]
		if dateCol != nil {
			sort.SliceStable(idx, func(a, b int) bool {
				da, okA := dateCol[idx[a]].(time.Time)
				db, okB := dateCol[idx[b]].(time.Time)
				if !okA || !okB {
					return okB
				}
				return da.Before(db)
			})
		}
		for _, name := range numeric {
			col := t.Column(name)
			report.Interpolated[name] += interpolateSeries(col, idx)
		}
	}
}

// interpolateSeries linearly fills nil runs strictly between two valid
// points of the positioned series. Leading and trailing gaps are left
// unresolved. Returns the number of cells filled.
func interpolateSeries(col []any, idx []int) int {
	filled := 0
	prev := -1 // position in idx of the last valid value
	for pos := 0; pos < len(idx); pos++ {
		v, ok := col[idx[pos]].(float64)
		if !ok {
			continue
		}
		if prev >= 0 && pos-prev > 1 {
			start, _ := col[idx[prev]].(float64)
			span := float64(pos - prev)
			step := (v - start) / span
			for k := prev + 1; k < pos; k++ {
				col[idx[k]] = start + step*float64(k-prev)
				filled++
			}
		}
		prev = pos
	}
	return filled
}

func fillResiduals(t *Table, numeric []string, report *RepairReport) {
	numericSet := make(map[string]bool, len(numeric))
	for _, name := range numeric {
		numericSet[name] = true
	}

	for _, name := range t.Columns() {
		col := t.Column(name)
		switch {
		case numericSet[name]:
			for i, v := range col {
				if v == nil {
					col[i] = 0.0
					report.ResidualFilled[name]++
				}
			}
		case name == CountryKey:
			// handled below: rows without a country are dropped
		default:
			if _, isDate := someDate(col); isDate {
				continue
			}
			for i, v := range col {
				if v == nil {
					col[i] = ""
				}
			}
		}
	}

	countryCol := t.Column(CountryKey)
	if countryCol == nil {
		return
	}
	keep := make([]bool, t.NumRows())
	for i, v := range countryCol {
		s, _ := v.(string)
		keep[i] = strings.TrimSpace(s) != ""
		if !keep[i] {
			report.RowsDropped++
		}
	}
	t.filterRows(keep)
}

// someDate reports whether the column holds calendar dates.
func someDate(col []any) (time.Time, bool) {
	for _, v := range col {
		if d, ok := v.(time.Time); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// clipOutliers clamps each numeric column to the Tukey fences computed
// from its post-repair distribution. The lower fence is floored at zero
// since every tracked metric is a count.
func clipOutliers(t *Table, numeric []string, report *RepairReport) {
	for _, name := range numeric {
		col := t.Column(name)
		values := make([]float64, 0, len(col))
		for _, v := range col {
			if f, ok := v.(float64); ok {
				values = append(values, f)
			}
		}
		if len(values) < 4 {
			continue
		}
		lower, upper := iqrBounds(values)
		for i, v := range col {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			switch {
			case f < lower:
				col[i] = lower
				report.OutliersClamped[name]++
			case f > upper:
				col[i] = upper
				report.OutliersClamped[name]++
			}
		}
	}
}

// iqrBounds returns [max(0, Q1-1.5*IQR), Q3+1.5*IQR].
func iqrBounds(values []float64) (float64, float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	if lower < 0 {
		lower = 0
	}
	return lower, q3 + 1.5*iqr
}

func dedupRows(t *Table) int {
	seen := make(map[string]bool, t.NumRows())
	keep := make([]bool, t.NumRows())
	dropped := 0
	for i := 0; i < t.NumRows(); i++ {
		key := t.rowKey(i)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		keep[i] = true
	}
	t.filterRows(keep)
	return dropped
}

// addDerivedDateColumns appends year, month and ISO week columns when a
// repaired date column is present, for downstream grouping.
func addDerivedDateColumns(t *Table) {
	dateCol := t.Column("date")
	if dateCol == nil {
		return
	}
	if _, ok := someDate(dateCol); !ok {
		return
	}
	for _, name := range []string{"year", "month", "week"} {
		if !t.HasColumn(name) {
			t.addColumn(name)
		}
	}
	for i, v := range dateCol {
		d, ok := v.(time.Time)
		if !ok {
			continue
		}
		_, week := d.ISOWeek()
		t.Set("year", i, float64(d.Year()))
		t.Set("month", i, float64(int(d.Month())))
		t.Set("week", i, float64(week))
	}
}
