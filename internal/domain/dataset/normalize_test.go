package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/pandemetrix/pandemetrix/pkg/errors"
)

func TestCanonicalColumnName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"New Cases", "new_cases"},
		{"new_cases", "new_cases"},
		{"Daily Occupancy (Hosp)", "daily_occupancy_hosp"},
		{"Date  Reported", "date_reported"},
		{"COUNTRY", "country"},
		{" total-tests ", "total_tests"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, CanonicalColumnName(tc.raw))
		require.Equal(t, tc.want, CanonicalColumnName(tc.want), "canonicalization must be idempotent")
	}
}

func TestNormalizeScenario(t *testing.T) {
	raw := New("Country", "New Cases", "Date")
	raw.AppendRow(map[string]any{"Country": "France", "New Cases": "150", "Date": "2023-01-02"})

	got, err := Normalize(raw, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"country", "new_cases", "date"}, got.Columns())
	require.Equal(t, "France", got.Value("country", 0))
	require.Equal(t, "150", got.Value("new_cases", 0))

	date, ok := got.Value("date", 0).(time.Time)
	require.True(t, ok)
	require.Equal(t, "2023-01-02", date.Format("2006-01-02"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := New("Entity", "New Cases", "Report Date", "Notes")
	raw.AppendRow(map[string]any{"Entity": "France", "New Cases": "10", "Report Date": "2022-05-01", "Notes": "x"})
	raw.AppendRow(map[string]any{"Entity": "Peru", "New Cases": "3", "Report Date": "bogus", "Notes": "y"})

	once, err := Normalize(raw, nil)
	require.NoError(t, err)
	twice, err := Normalize(once, nil)
	require.NoError(t, err)

	require.Equal(t, once.Columns(), twice.Columns())
	for _, name := range once.Columns() {
		for i := 0; i < once.NumRows(); i++ {
			require.Equal(t, once.Value(name, i), twice.Value(name, i), "column %s row %d", name, i)
		}
	}
}

func TestNormalizeIdentityAliasFirstMatchWins(t *testing.T) {
	raw := New("Location", "Entity", "Date")
	raw.AppendRow(map[string]any{"Location": "Spain", "Entity": "ignored", "Date": "2021-03-04"})

	got, err := Normalize(raw, nil)
	require.NoError(t, err)
	require.True(t, got.HasColumn("country"))
	require.Equal(t, "Spain", got.Value("country", 0))
	// The identity column keeps its original position.
	require.Equal(t, "country", got.Columns()[0])
}

func TestNormalizeUnparseableDateBecomesMissing(t *testing.T) {
	raw := New("country", "date", "new_cases")
	raw.AppendRow(map[string]any{"country": "France", "date": "not-a-date", "new_cases": "5"})

	got, err := Normalize(raw, nil)
	require.NoError(t, err)
	require.True(t, got.HasColumn("date"), "row must keep its date cell as explicit missing")
	require.Nil(t, got.Value("date", 0))
}

func TestNormalizeDropsAllMissingColumns(t *testing.T) {
	raw := New("country", "empty_col", "new_cases")
	raw.AppendRow(map[string]any{"country": "France", "new_cases": "1"})
	raw.AppendRow(map[string]any{"country": "Spain", "new_cases": "2"})

	got, err := Normalize(raw, nil)
	require.NoError(t, err)
	require.False(t, got.HasColumn("empty_col"))
	require.Equal(t, []string{"country", "new_cases"}, got.Columns())
}

func TestNormalizeFailsWithoutIdentityColumn(t *testing.T) {
	raw := New("region", "date", "new_cases")
	raw.AppendRow(map[string]any{"region": "Bavaria", "date": "2021-01-01", "new_cases": "2"})

	_, err := Normalize(raw, nil)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeSchemaError))
}
