// Package rules holds the versioned rule data injected into the candidate
// generator and the deduplicator: category routing, no-document-expected
// classification, and issuer rename aliases. Rules ship with compiled-in
// defaults and can be overridden from a YAML file without code changes.
package rules

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/debtlink/internal/model"
)

// NoDocumentRule flags instruments that carry no governing document.
// Rules are evaluated in list order; the first match supplies the single
// reason an instrument receives.
type NoDocumentRule struct {
	Reason       string   `yaml:"reason"`
	Types        []string `yaml:"types,omitempty"`
	NamePatterns []string `yaml:"name_patterns,omitempty"`

	nameRes []*regexp.Regexp
}

// RuleSet is the full injectable rule configuration.
type RuleSet struct {
	Version         string            `yaml:"version"`
	CategoryRouting map[string]string `yaml:"category_routing"`
	NoDocument      []NoDocumentRule  `yaml:"no_document"`
	IssuerAliases   map[string]string `yaml:"issuer_aliases"`

	routing map[model.InstrumentType]model.DocumentCategory
	aliases map[string]string // normalized alias -> normalized canonical
}

// Default returns the built-in ruleset.
func Default() *RuleSet {
	rs := &RuleSet{
		Version: "builtin",
		CategoryRouting: map[string]string{
			"bond":            "indenture",
			"note":            "indenture",
			"debenture":       "indenture",
			"convertible":     "indenture",
			"subordinated":    "indenture",
			"revolver":        "credit_agreement",
			"term_loan":       "credit_agreement",
			"term_loan_a":     "credit_agreement",
			"term_loan_b":     "credit_agreement",
			"abl":             "credit_agreement",
			"credit_facility": "credit_agreement",
		},
		NoDocument: []NoDocumentRule{
			{Reason: "commercial_paper", Types: []string{"commercial_paper"}, NamePatterns: []string{`(?i)commercial\s+paper`}},
			{Reason: "intercompany", Types: []string{"intercompany"}, NamePatterns: []string{`(?i)intercompany`}},
			{Reason: "bilateral_line", Types: []string{"bilateral_line"}, NamePatterns: []string{`(?i)bilateral`}},
			{Reason: "securitization", Types: []string{"securitization"}, NamePatterns: []string{`(?i)securitiz`, `(?i)receivables\s+(facility|program)`}},
			{Reason: "finance_lease", Types: []string{"finance_lease"}, NamePatterns: []string{`(?i)finance\s+lease`, `(?i)capital\s+lease`}},
			{Reason: "letter_of_credit", Types: []string{"letter_of_credit"}, NamePatterns: []string{`(?i)letters?\s+of\s+credit`}},
			{Reason: "foreign_facility", Types: []string{"foreign_facility"}, NamePatterns: []string{`(?i)(foreign|local)\s+(currency\s+)?(facility|facilities|borrowings?|lines?)`}},
			{Reason: "other_aggregate", Types: []string{"other"}, NamePatterns: []string{`(?i)^other\b`, `(?i)\bother\s+(debt|borrowings?|obligations?)\b`}},
		},
		IssuerAliases: map[string]string{},
	}
	if err := rs.compile(); err != nil {
		// Builtin patterns are compile-tested; this cannot happen.
		panic(err)
	}
	return rs
}

// Load reads a ruleset from a YAML file. An empty path returns Default().
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Recompile rebuilds the lookup tables after programmatic edits to the
// exported rule fields.
func (rs *RuleSet) Recompile() error {
	return rs.compile()
}

// compile builds the typed lookup tables and pre-compiles name patterns.
func (rs *RuleSet) compile() error {
	rs.routing = make(map[model.InstrumentType]model.DocumentCategory, len(rs.CategoryRouting))
	for typ, cat := range rs.CategoryRouting {
		switch model.DocumentCategory(cat) {
		case model.CategoryIndenture, model.CategoryCreditAgreement:
			rs.routing[model.InstrumentType(typ)] = model.DocumentCategory(cat)
		default:
			return eris.Errorf("rules: unknown document category %q for type %q", cat, typ)
		}
	}

	for i := range rs.NoDocument {
		rule := &rs.NoDocument[i]
		rule.nameRes = rule.nameRes[:0]
		for _, p := range rule.NamePatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return eris.Wrapf(err, "rules: compile pattern %q", p)
			}
			rule.nameRes = append(rule.nameRes, re)
		}
	}

	rs.aliases = make(map[string]string, len(rs.IssuerAliases))
	for from, to := range rs.IssuerAliases {
		rs.aliases[NormalizeName(from)] = NormalizeName(to)
	}

	return nil
}

// RouteCategory maps an instrument type to its expected document category.
// Unknown types return ("", false): a wrong-category match is worse than
// no match, so there is no default.
func (rs *RuleSet) RouteCategory(typ model.InstrumentType) (model.DocumentCategory, bool) {
	cat, ok := rs.routing[typ]
	return cat, ok
}

// NoDocumentReason returns the single reason an instrument is expected to
// have no governing document, or ("", false) when a document is expected.
func (rs *RuleSet) NoDocumentReason(inst *model.Instrument) (string, bool) {
	for i := range rs.NoDocument {
		rule := &rs.NoDocument[i]
		for _, typ := range rule.Types {
			if inst.Type == model.InstrumentType(typ) {
				return rule.Reason, true
			}
		}
		for _, re := range rule.nameRes {
			if re.MatchString(inst.Name) {
				return rule.Reason, true
			}
		}
	}
	return "", false
}

// CanonicalIssuer resolves known corporate-rename aliases, returning the
// normalized canonical issuer name.
func (rs *RuleSet) CanonicalIssuer(name string) string {
	norm := NormalizeName(name)
	if canonical, ok := rs.aliases[norm]; ok {
		return canonical
	}
	return norm
}
