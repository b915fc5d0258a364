package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// fakeStore serves canned instruments, reported debt, and link sets.
type fakeStore struct {
	instruments []model.Instrument
	reported    map[int64]*store.ReportedDebt
	linked      map[int64]bool

	failCompany int64 // SumOutstanding errors for this company id
}

func (f *fakeStore) ListActiveInstruments(_ context.Context, companyID int64) ([]model.Instrument, error) {
	var out []model.Instrument
	for _, inst := range f.instruments {
		if inst.CompanyID == companyID && inst.IsActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeStore) SumOutstanding(_ context.Context, companyID int64) (int64, error) {
	if f.failCompany != 0 && companyID == f.failCompany {
		return 0, eris.New("boom")
	}
	var sum int64
	for _, inst := range f.instruments {
		if inst.CompanyID == companyID && inst.IsActive && inst.OutstandingCents != nil {
			sum += *inst.OutstandingCents
		}
	}
	return sum, nil
}

func (f *fakeStore) LatestReportedDebt(_ context.Context, companyID int64) (*store.ReportedDebt, error) {
	return f.reported[companyID], nil
}

func (f *fakeStore) ListLinkedInstrumentIDs(context.Context, int64) (map[int64]bool, error) {
	return f.linked, nil
}

func (f *fakeStore) ListCompanyIDs(context.Context) ([]int64, error) { return nil, nil }
func (f *fakeStore) GetInstrument(context.Context, int64) (*model.Instrument, error) {
	return nil, nil
}
func (f *fakeStore) ListUnlinkedInstruments(context.Context, int64) ([]model.Instrument, error) {
	return nil, nil
}
func (f *fakeStore) UpdateInstrumentFields(context.Context, int64, map[string]any) error {
	return nil
}
func (f *fakeStore) DeactivateInstrument(context.Context, int64, string) error { return nil }
func (f *fakeStore) GetDocument(context.Context, int64) (*model.Document, error) {
	return nil, nil
}
func (f *fakeStore) ListDocumentsByCategory(context.Context, int64, model.DocumentCategory) ([]model.Document, error) {
	return nil, nil
}
func (f *fakeStore) ReclassifyDocument(context.Context, int64, model.DocumentCategory) error {
	return nil
}
func (f *fakeStore) DeleteDocument(context.Context, int64) error { return nil }
func (f *fakeStore) UpsertLink(context.Context, *model.Link) (bool, error) {
	return false, nil
}
func (f *fakeStore) ListLinks(context.Context, int64) ([]model.Link, error) { return nil, nil }
func (f *fakeStore) ListReviewQueue(context.Context, store.ReviewFilter) ([]model.Link, error) {
	return nil, nil
}
func (f *fakeStore) VerifyLink(context.Context, int64) error { return nil }
func (f *fakeStore) ListGuarantees(context.Context, int64) ([]model.Guarantee, error) {
	return nil, nil
}
func (f *fakeStore) ListCollateral(context.Context, int64) ([]model.Collateral, error) {
	return nil, nil
}
func (f *fakeStore) MergeDuplicates(context.Context, store.MergeSpec) error { return nil }
func (f *fakeStore) Migrate(context.Context) error                          { return nil }
func (f *fakeStore) Ping(context.Context) error                             { return nil }
func (f *fakeStore) Close() error                                           { return nil }

func int64Ptr(v int64) *int64 { return &v }

func datePtr(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func activeNote(id, companyID, outstanding int64) model.Instrument {
	return model.Instrument{
		ID:               id,
		CompanyID:        companyID,
		IssuerName:       "Acme Corp",
		Name:             "4.50% Senior Notes due 2029",
		Type:             model.TypeNote,
		Maturity:         datePtr(2029, 6, 1),
		OutstandingCents: int64Ptr(outstanding),
		IsActive:         true,
	}
}

func TestClassify(t *testing.T) {
	const reported = 500_000_000_000 // $5B

	tests := []struct {
		name     string
		sum      int64
		reported int64
		want     model.DebtClassification
	}{
		{"no financials", 100, 0, model.ClassNoFinancials},
		{"negative reported", 100, -5, model.ClassNoFinancials},
		{"missing all", 0, reported, model.ClassMissingAll},
		{"missing significant", 100_000_000_000, reported, model.ClassMissingSignificant},
		{"missing some", 300_000_000_000, reported, model.ClassMissingSome},
		{"ok lower edge", 400_000_000_000, reported, model.ClassOK},
		{"ok", 500_000_000_000, reported, model.ClassOK},
		{"ok upper edge", 600_000_000_000, reported, model.ClassOK},
		{"excess some", 700_000_000_000, reported, model.ClassExcessSome},
		{"excess some upper edge", 1_000_000_000_000, reported, model.ClassExcessSome},
		{"excess significant", 1_200_000_000_000, reported, model.ClassExcessSignificant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sum, tt.reported))
		})
	}
}

func TestSnapshot_ClassifiesAgainstLatestReported(t *testing.T) {
	f := &fakeStore{
		instruments: []model.Instrument{activeNote(1, 10, 480_000_000_000)},
		reported: map[int64]*store.ReportedDebt{
			10: {CompanyID: 10, FiscalPeriod: "FY2025", TotalDebtCents: 500_000_000_000},
		},
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, model.ClassOK, snap.Classification)
	assert.Equal(t, "FY2025", snap.FiscalPeriod)
	assert.Equal(t, int64(480_000_000_000), snap.InstrumentSum)
	assert.Empty(t, snap.Anomalies)
}

func TestSnapshot_NoFinancials(t *testing.T) {
	f := &fakeStore{
		instruments: []model.Instrument{activeNote(1, 10, 100)},
		reported:    map[int64]*store.ReportedDebt{},
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, model.ClassNoFinancials, snap.Classification)
	assert.Zero(t, snap.ReportedTotalDebt)
}

func TestSnapshot_FlagsMaturedActiveInstrument(t *testing.T) {
	past := activeNote(7, 10, 100_000_000_000)
	past.Maturity = datePtr(2024, 6, 1)

	f := &fakeStore{
		instruments: []model.Instrument{past},
		reported: map[int64]*store.ReportedDebt{
			10: {CompanyID: 10, TotalDebtCents: 100_000_000_000},
		},
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background(), 10)
	require.NoError(t, err)
	assert.Contains(t, snap.Anomalies, "matured_active:7")
	// Flag only: the instrument still counts toward the sum.
	assert.Equal(t, int64(100_000_000_000), snap.InstrumentSum)
}

func TestSnapshot_FlagsNegativeReportedDebt(t *testing.T) {
	f := &fakeStore{
		instruments: []model.Instrument{activeNote(1, 10, 100)},
		reported: map[int64]*store.ReportedDebt{
			10: {CompanyID: 10, TotalDebtCents: -500},
		},
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, model.ClassNoFinancials, snap.Classification)
	assert.Contains(t, snap.Anomalies, AnomalyNegativeReported)
}

func TestSnapshot_FlagsScaleSuspect(t *testing.T) {
	// Sum is 100x reported: almost certainly cents stored as dollars
	// somewhere upstream. Flagged, never rescaled.
	f := &fakeStore{
		instruments: []model.Instrument{activeNote(1, 10, 500_000_000_000)},
		reported: map[int64]*store.ReportedDebt{
			10: {CompanyID: 10, TotalDebtCents: 5_000_000_000},
		},
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := r.Snapshot(context.Background(), 10)
	require.NoError(t, err)
	assert.Contains(t, snap.Anomalies, AnomalyScaleSuspect)
	assert.Equal(t, int64(500_000_000_000), snap.InstrumentSum)
	assert.Equal(t, model.ClassExcessSignificant, snap.Classification)
}

func TestCoverage_AdjustedExcludesNoDocumentExpected(t *testing.T) {
	linkedNote := activeNote(1, 10, 100)
	unlinkedNote := activeNote(2, 10, 100)

	linkedCP := activeNote(3, 10, 100)
	linkedCP.Name = "Commercial Paper Program"
	linkedCP.Type = model.TypeCommercialPaper

	unlinkedCP := activeNote(4, 10, 100)
	unlinkedCP.Name = "Commercial Paper Program"
	unlinkedCP.Type = model.TypeCommercialPaper

	odd := activeNote(5, 10, 100)
	odd.Name = "Deferred purchase obligation"
	odd.Type = model.InstrumentType("earnout")

	f := &fakeStore{
		instruments: []model.Instrument{linkedNote, unlinkedNote, linkedCP, unlinkedCP, odd},
		linked:      map[int64]bool{1: true, 3: true},
	}

	m, err := New(f, rules.Default()).Coverage(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 5, m.TotalInstruments)
	assert.Equal(t, 2, m.Linked)
	assert.Equal(t, 2, m.NoDocumentExpected)
	assert.Equal(t, 1, m.Unclassifiable)
	assert.InDelta(t, 40.0, m.RawCoveragePct, 0.01)
	// Both commercial paper records leave the adjusted calculation,
	// including the linked one: 1 of 3 remaining.
	assert.InDelta(t, 33.33, m.AdjustedCoveragePct, 0.01)
}

func TestCoverage_EmptyCompany(t *testing.T) {
	m, err := New(&fakeStore{}, rules.Default()).Coverage(context.Background(), 99)
	require.NoError(t, err)
	assert.Zero(t, m.TotalInstruments)
	assert.Zero(t, m.RawCoveragePct)
	assert.Zero(t, m.AdjustedCoveragePct)
}

func TestSnapshotAll_IsolatesCompanyFailures(t *testing.T) {
	f := &fakeStore{
		instruments: []model.Instrument{
			activeNote(1, 10, 500_000_000_000),
			activeNote(2, 20, 100),
		},
		reported: map[int64]*store.ReportedDebt{
			10: {CompanyID: 10, TotalDebtCents: 500_000_000_000},
			20: {CompanyID: 20, TotalDebtCents: 100},
		},
		failCompany: 20,
	}
	r := New(f, rules.Default())
	r.nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	snaps, summary, err := r.SnapshotAll(context.Background(), []int64{20, 10})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Reasons["company_error"])
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(10), snaps[0].CompanyID)
}
