package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBasic(t *testing.T) {
	csv := "country, date ,new_cases\nFrance,2021-01-01,100\nPeru,2021-01-02,5\n"

	table, err := NewCSVDecoder().Decode(strings.NewReader(csv))
	require.NoError(t, err)

	require.Equal(t, []string{"country", "date", "new_cases"}, table.Columns())
	require.Equal(t, 2, table.NumRows())
	require.Equal(t, "France", table.Value("country", 0))
	require.Equal(t, "100", table.Value("new_cases", 0), "cells stay strings until repair")
}

func TestDecodeEmptyCellsBecomeMissing(t *testing.T) {
	csv := "country,date,new_cases\nFrance,2021-01-01,\n"

	table, err := NewCSVDecoder().Decode(strings.NewReader(csv))
	require.NoError(t, err)
	require.Nil(t, table.Value("new_cases", 0))
}

func TestDecodeRaggedRows(t *testing.T) {
	csv := "country,date,new_cases\nFrance,2021-01-01\nPeru,2021-01-02,5,extra\n"

	table, err := NewCSVDecoder().Decode(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, table.NumRows())
	require.Nil(t, table.Value("new_cases", 0), "short rows get missing cells")
	require.Equal(t, "5", table.Value("new_cases", 1), "long rows are truncated to the header")
}

func TestDecodeEmptyStream(t *testing.T) {
	_, err := NewCSVDecoder().Decode(strings.NewReader(""))
	require.Error(t, err)
}
