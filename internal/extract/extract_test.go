package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{"notes context", "4.50% Senior Notes due June 1, 2029", floatPtr(4.5)},
		{"spaced percent", "the 2.7 % Notes mature in 2027", floatPtr(2.7)},
		{"no context word", "a 4.50% increase in revenue", nil},
		{"ownership stake ignored", "holds a 45% stake in the venture", nil},
		{"out of range", "Section 21.5% Notes", nil},
		{"no rate", "Revolving Credit Facility", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRate(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.0001)
		})
	}
}

func TestExtractMaturityYear(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"due year", "5.25% Senior Notes due 2031", 2031},
		{"due full date", "Notes due June 1, 2029", 2029},
		{"maturing in", "the loan maturing in 2028", 2028},
		{"maturity date of", "with a maturity date of March 15, 2030", 2030},
		{"no year", "Revolving Credit Facility", 0},
		{"pre-2000 ignored", "issued in 1998", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMaturityYear(tt.text))
		})
	}
}

func TestExtractFacilityKeywords(t *testing.T) {
	kw := ExtractFacilityKeywords("Amended and Restated Credit Agreement providing a Term Loan B and revolving commitments")
	assert.True(t, kw["credit_facility"])
	assert.True(t, kw["term_loan_b"])
	assert.True(t, kw["term_loan"], "sub-variant implies the base type")
	assert.True(t, kw["revolver"])
	assert.False(t, kw["abl"])
}

func TestExtractAmountsCents(t *testing.T) {
	amounts := ExtractAmountsCents("a $1.5 billion term loan and a $750 million revolver")
	require.Len(t, amounts, 2)
	assert.Equal(t, int64(150_000_000_000), amounts[0])
	assert.Equal(t, int64(75_000_000_000), amounts[1])

	assert.Empty(t, ExtractAmountsCents("no amounts here"))
}

func TestNormalizeRate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.7, "2.7"},
		{2.70, "2.7"},
		{4.5, "4.5"},
		{4.55, "4.55"},
		{5.0, "5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRate(tt.in))
	}
}

func TestNormalizeRateString(t *testing.T) {
	assert.Equal(t, NormalizeRateString("2.70"), NormalizeRateString("2.7"))
	assert.Equal(t, "4.5", NormalizeRateString(" 4.50% "))
	assert.Equal(t, "garbage", NormalizeRateString("garbage"))
}

func TestRateVariants(t *testing.T) {
	variants := RateVariants(4.5)
	assert.Contains(t, variants, "4.5")
	assert.Contains(t, variants, "4.50")
	assert.Contains(t, variants, "4.500")
}

func TestFromText(t *testing.T) {
	ids := FromText("4.50% Senior Notes due 2029, under the $1.5 billion Credit Agreement")
	require.NotNil(t, ids.Rate)
	assert.InDelta(t, 4.5, *ids.Rate, 0.0001)
	assert.Equal(t, 2029, ids.MaturityYear)
	assert.True(t, ids.FacilityKeywords["credit_facility"])
	require.Len(t, ids.AmountsCents, 1)
}

func floatPtr(v float64) *float64 { return &v }
