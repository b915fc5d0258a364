package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// fakeStore records merge specs for inspection.
type fakeStore struct {
	instruments []model.Instrument
	merges      []store.MergeSpec
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

func (f *fakeStore) MergeDuplicates(_ context.Context, spec store.MergeSpec) error {
	f.merges = append(f.merges, spec)
	return nil
}

func (f *fakeStore) ListCompanyIDs(context.Context) ([]int64, error) { return nil, nil }
func (f *fakeStore) LatestReportedDebt(context.Context, int64) (*store.ReportedDebt, error) {
	return nil, nil
}
func (f *fakeStore) GetInstrument(context.Context, int64) (*model.Instrument, error) {
	return nil, nil
}
func (f *fakeStore) ListUnlinkedInstruments(context.Context, int64) ([]model.Instrument, error) {
	return nil, nil
}
func (f *fakeStore) SumOutstanding(context.Context, int64) (int64, error) { return 0, nil }
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
func (f *fakeStore) ListLinkedInstrumentIDs(context.Context, int64) (map[int64]bool, error) {
	return nil, nil
}
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
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Close() error                  { return nil }

func int64Ptr(v int64) *int64 { return &v }

func datePtr(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func baseInstrument(id int64, created time.Time) model.Instrument {
	return model.Instrument{
		ID:         id,
		CompanyID:  10,
		IssuerName: "Acme Corp",
		Name:       "4.50% Senior Notes due 2029",
		Type:       model.TypeNote,
		CouponBps:  int64Ptr(450),
		Maturity:   datePtr(2029, 6, 1),
		IsActive:   true,
		CreatedAt:  created,
	}
}

func TestDedupe_SurvivorByCompletenessScore(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older := baseInstrument(1, t0)
	// The newer record is more complete: outstanding (+4) and CUSIP (+2).
	newer := baseInstrument(2, t0.Add(time.Hour))
	newer.OutstandingCents = int64Ptr(50_000_000_000)
	newer.CUSIP = "037833AB1"

	f := &fakeStore{instruments: []model.Instrument{older, newer}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Merged, 1)
	assert.Equal(t, int64(2), report.Merged[0].SurvivorID)
	assert.Equal(t, []int64{1}, report.Merged[0].DuplicateIDs)

	require.Len(t, f.merges, 1)
	assert.Equal(t, "duplicate_of:2", f.merges[0].AuditNote)
}

func TestDedupe_TieBrokenByEarliestCreation(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := baseInstrument(5, t0)
	second := baseInstrument(3, t0.Add(time.Hour))

	f := &fakeStore{instruments: []model.Instrument{second, first}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Merged, 1)
	assert.Equal(t, int64(5), report.Merged[0].SurvivorID)
}

func TestDedupe_FirstNonNullWinsOnMerge(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	survivor := baseInstrument(1, t0)
	survivor.OutstandingCents = int64Ptr(50_000_000_000)
	survivor.CUSIP = "037833AB1"
	// Survivor lacks ISIN and principal.

	dupA := baseInstrument(2, t0.Add(time.Hour))
	dupA.ISIN = "US0378331005"
	dupA.PrincipalCents = int64Ptr(50_000_000_000)

	dupB := baseInstrument(3, t0.Add(2*time.Hour))
	dupB.ISIN = "US9999999999" // later non-null loses to dupA's value

	f := &fakeStore{instruments: []model.Instrument{survivor, dupA, dupB}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Merged, 1)
	plan := report.Merged[0]
	assert.Equal(t, int64(1), plan.SurvivorID)
	assert.Equal(t, "US0378331005", plan.FieldUpdates["isin"])
	assert.Equal(t, int64(50_000_000_000), plan.FieldUpdates["principal_cents"])
}

func TestDedupe_ConflictRecordedNotOverwritten(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	survivor := baseInstrument(1, t0)
	survivor.OutstandingCents = int64Ptr(50_000_000_000)
	survivor.CUSIP = "037833AB1"

	dup := baseInstrument(2, t0.Add(time.Hour))
	dup.CUSIP = "DIFFERENT99"

	f := &fakeStore{instruments: []model.Instrument{survivor, dup}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Merged, 1)
	plan := report.Merged[0]
	_, cusipUpdated := plan.FieldUpdates["cusip"]
	assert.False(t, cusipUpdated)
	require.Len(t, plan.Conflicts, 1)
	assert.Contains(t, plan.Conflicts[0], "cusip")
}

func TestDedupe_IssuerAliasCollapsesGroup(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	preRename := baseInstrument(1, t0)
	preRename.IssuerName = "Oldco Industries Inc"
	postRename := baseInstrument(2, t0.Add(time.Hour))
	postRename.IssuerName = "Newco Industries Inc"

	rs := rules.Default()
	rs.IssuerAliases = map[string]string{"Oldco Industries Inc": "Newco Industries Inc"}
	require.NoError(t, rs.Recompile())

	f := &fakeStore{instruments: []model.Instrument{preRename, postRename}}
	report, err := New(f, rs).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	assert.Len(t, report.Merged, 1)
	assert.Empty(t, report.ManualReview)
}

func TestDedupe_DivergentIssuersGoToManualReview(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Same rate and maturity year, genuinely different issuers: the
	// rate_year key groups them, but they must not auto-merge.
	a := baseInstrument(1, t0)
	a.IssuerName = "Acme Corp"
	a.Name = "Acme 4.50% Notes"
	b := baseInstrument(2, t0.Add(time.Hour))
	b.IssuerName = "Globex Corp"
	b.Name = "Globex 4.50% Notes"

	f := &fakeStore{instruments: []model.Instrument{a, b}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	assert.Empty(t, report.Merged)
	require.Len(t, report.ManualReview, 1)
	assert.Empty(t, f.merges)
}

func TestDedupe_DryRunWritesNothing(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	f := &fakeStore{instruments: []model.Instrument{
		baseInstrument(1, t0),
		baseInstrument(2, t0.Add(time.Hour)),
	}}

	d := New(f, rules.Default())
	d.DryRun = true
	report, err := d.DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	assert.Len(t, report.Merged, 1)
	assert.True(t, report.DryRun)
	assert.Empty(t, f.merges)
}

func TestDedupe_NoDuplicatesIsNoop(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := baseInstrument(1, t0)
	b := baseInstrument(2, t0)
	b.Name = "6.00% Debentures due 2040"
	b.CouponBps = int64Ptr(600)
	b.Maturity = datePtr(2040, 1, 15)

	f := &fakeStore{instruments: []model.Instrument{a, b}}
	report, err := New(f, rules.Default()).DedupeCompany(context.Background(), 10)
	require.NoError(t, err)

	assert.Empty(t, report.Merged)
	assert.Empty(t, report.ManualReview)
	assert.Empty(t, f.merges)
}
