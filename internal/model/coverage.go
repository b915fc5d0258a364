package model

// DebtClassification buckets a company by how its active-instrument sum
// compares to independently reported total debt. Evaluated in declaration
// order; first match wins.
type DebtClassification string

const (
	ClassNoFinancials       DebtClassification = "NO_FINANCIALS"
	ClassMissingAll         DebtClassification = "MISSING_ALL"
	ClassMissingSignificant DebtClassification = "MISSING_SIGNIFICANT"
	ClassExcessSignificant  DebtClassification = "EXCESS_SIGNIFICANT"
	ClassMissingSome        DebtClassification = "MISSING_SOME"
	ClassExcessSome         DebtClassification = "EXCESS_SOME"
	ClassOK                 DebtClassification = "OK"
)

// CoverageMetrics reports per-company linkage coverage for the reporting
// collaborator. Instruments flagged no_document_expected are excluded
// from both the numerator and denominator of AdjustedCoveragePct.
type CoverageMetrics struct {
	CompanyID           int64   `json:"company_id"`
	TotalInstruments    int     `json:"total_instruments"`
	Linked              int     `json:"linked"`
	NoDocumentExpected  int     `json:"no_document_expected"`
	Unclassifiable      int     `json:"unclassifiable"`
	RawCoveragePct      float64 `json:"raw_coverage_pct"`
	AdjustedCoveragePct float64 `json:"adjusted_coverage_pct"`
}

// DebtSnapshot compares a company's active-instrument sum to its latest
// positive reported total debt. Computed on demand, never persisted.
type DebtSnapshot struct {
	CompanyID         int64              `json:"company_id"`
	InstrumentSum     int64              `json:"instrument_sum_cents"`
	ReportedTotalDebt int64              `json:"reported_total_debt_cents"`
	FiscalPeriod      string             `json:"fiscal_period,omitempty"`
	Classification    DebtClassification `json:"classification"`
	Anomalies         []string           `json:"anomalies,omitempty"`
}

// BatchSummary tallies per-item outcomes of a batch job. One bad record
// never aborts a company, and one bad company never aborts a run; the
// summary is how failures surface.
type BatchSummary struct {
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reasons   map[string]int `json:"reasons,omitempty"`
}

// AddReason increments the named skip/failure reason.
func (s *BatchSummary) AddReason(reason string) {
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Reasons[reason]++
}

// Merge folds another summary into this one.
func (s *BatchSummary) Merge(other BatchSummary) {
	s.Succeeded += other.Succeeded
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	for reason, n := range other.Reasons {
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[reason] += n
	}
}
