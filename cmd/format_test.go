package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/debtlink/internal/model"
)

func TestDollars(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{150, "$1.50"},
		{500_000_000_000, "$5,000,000,000.00"},
		{-2550, "$-25.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dollars(tt.cents))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a very ...", truncate("a very long instrument name", 10))
}

func TestFormatSnapshots(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshots(&buf, []model.DebtSnapshot{
		{
			CompanyID:         10,
			InstrumentSum:     480_000_000_000,
			ReportedTotalDebt: 500_000_000_000,
			FiscalPeriod:      "FY2025",
			Classification:    model.ClassOK,
		},
		{
			CompanyID:      20,
			Classification: model.ClassNoFinancials,
			Anomalies:      []string{"matured_active:7"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "FY2025")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "NO_FINANCIALS")
	assert.Contains(t, out, "matured_active:7")
	assert.Contains(t, out, "$4,800,000,000.00")
}

func TestFormatCoverage(t *testing.T) {
	var buf bytes.Buffer
	formatCoverage(&buf, []model.CoverageMetrics{
		{
			CompanyID:           10,
			TotalInstruments:    4,
			Linked:              3,
			NoDocumentExpected:  1,
			RawCoveragePct:      75.0,
			AdjustedCoveragePct: 100.0,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "75.0")
	assert.Contains(t, out, "100.0")
}
