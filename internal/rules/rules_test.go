package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/debtlink/internal/model"
)

func TestDefault_RouteCategory(t *testing.T) {
	rs := Default()

	tests := []struct {
		typ  model.InstrumentType
		want model.DocumentCategory
		ok   bool
	}{
		{model.TypeNote, model.CategoryIndenture, true},
		{model.TypeBond, model.CategoryIndenture, true},
		{model.TypeConvertible, model.CategoryIndenture, true},
		{model.TypeRevolver, model.CategoryCreditAgreement, true},
		{model.TypeTermLoanB, model.CategoryCreditAgreement, true},
		{model.TypeCommercialPaper, "", false},
		{model.InstrumentType("earnout"), "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			cat, ok := rs.RouteCategory(tt.typ)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, cat)
		})
	}
}

func TestDefault_NoDocumentReason(t *testing.T) {
	rs := Default()

	tests := []struct {
		name   string
		inst   model.Instrument
		reason string
		ok     bool
	}{
		{"by type", model.Instrument{Type: model.TypeCommercialPaper, Name: "CP Program"}, "commercial_paper", true},
		{"by name pattern", model.Instrument{Type: model.TypeOtherDebt, Name: "Other borrowings"}, "other_aggregate", true},
		{"receivables program", model.Instrument{Type: model.TypeNote, Name: "Trade Receivables Facility"}, "securitization", true},
		{"foreign line", model.Instrument{Type: model.TypeForeignFacility, Name: "Local currency borrowings"}, "foreign_facility", true},
		{"document expected", model.Instrument{Type: model.TypeNote, Name: "4.50% Senior Notes due 2029"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := rs.NoDocumentReason(&tt.inst)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestLoad_YAMLOverride(t *testing.T) {
	content := `version: test
category_routing:
  note: indenture
  revolver: credit_agreement
no_document:
  - reason: commercial_paper
    types: [commercial_paper]
issuer_aliases:
  "Old Name Corp": "New Name Inc"
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", rs.Version)

	cat, ok := rs.RouteCategory(model.TypeNote)
	assert.True(t, ok)
	assert.Equal(t, model.CategoryIndenture, cat)

	// Types absent from the override have no routing.
	_, ok = rs.RouteCategory(model.TypeBond)
	assert.False(t, ok)

	assert.Equal(t, rs.CanonicalIssuer("New Name, Inc."), rs.CanonicalIssuer("OLD NAME CORP"))
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	rs, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "builtin", rs.Version)
}

func TestLoad_RejectsUnknownCategory(t *testing.T) {
	content := `version: bad
category_routing:
  note: warranty_deed
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document category")
}

func TestLoad_RejectsBadPattern(t *testing.T) {
	content := `version: bad
no_document:
  - reason: broken
    name_patterns: ["[unclosed"]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp.", "ACME"},
		{"acme corporation", "ACME"},
		{"Acme Holdings", "ACME"},
		{"Smith & Jones, L.L.C.", "SMITH AND JONES"},
		{"Multi-Word / Name", "MULTI WORD NAME"},
		{"  padded  name  ", "PADDED NAME"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestCanonicalIssuer_AliasResolution(t *testing.T) {
	rs := Default()
	rs.IssuerAliases = map[string]string{"Twitter Inc": "X Corp"}
	require.NoError(t, rs.Recompile())

	assert.Equal(t, rs.CanonicalIssuer("X Corp."), rs.CanonicalIssuer("Twitter, Inc."))
	assert.Equal(t, "UNRELATED", rs.CanonicalIssuer("Unrelated Inc."))
}
