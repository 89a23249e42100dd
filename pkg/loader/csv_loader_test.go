package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finance-rag-be/pkg/rag/ragerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVLoader_Read(t *testing.T) {
	input := "Company,Revenue,Debt\nAcme, 1500000 ,500000\nGlobex,1200000,0\n"

	records, err := NewCSVLoader().Read("financials.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Company: Acme\nRevenue: 1500000\nDebt: 500000", records[0].Content)
	assert.Equal(t, "financials.csv", records[0].Metadata["source"])
	assert.Equal(t, "0", records[0].Metadata["row"])
	assert.Equal(t, "1", records[1].Metadata["row"])
}

func TestCSVLoader_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"header only", "a,b,c\n"},
		{"ragged row", "a,b\n1,2\n3\n"},
		{"blank header column", "a,,c\n1,2,3\n"},
		{"bad quoting", "a,b\n\"1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVLoader().Read("doc.csv", strings.NewReader(tt.input))
			var parseErr *ragerr.DocumentParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, "doc.csv", parseErr.Ref)
		})
	}
}

func TestCSVLoader_LoadMissingFile(t *testing.T) {
	_, err := NewCSVLoader().Load(filepath.Join(t.TempDir(), "missing.csv"))
	var parseErr *ragerr.DocumentParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestCSVLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffQuarter,Profit\nQ1,200000\n"), 0o644))

	records, err := NewCSVLoader().Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Quarter: Q1\nProfit: 200000", records[0].Content)
}
