// Package reconcile compares a company's active-instrument sum against its
// most recent reported total debt and classifies the gap. Classification is
// a diagnostic signal only: excess buckets feed the deduplicator, missing
// buckets flag re-extraction, and nothing here mutates financial figures.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// Anomaly flag values attached to a DebtSnapshot. Flags are advisory;
// no figure is ever auto-corrected.
const (
	AnomalyNegativeReported = "negative_reported_debt"
	AnomalyScaleSuspect     = "scale_suspect"
)

// DefaultScaleRatio flags a likely cents-vs-dollars mixup when the
// instrument sum and reported debt differ by this factor or more.
const DefaultScaleRatio = 90.0

// Reconciler computes debt snapshots and coverage metrics per company.
type Reconciler struct {
	store store.Store
	rules *rules.RuleSet

	// ScaleRatio bounds the sum/reported ratio before scale_suspect is
	// flagged. Zero means DefaultScaleRatio.
	ScaleRatio float64
	// MaxConcurrentCompanies bounds company-level parallelism in
	// SnapshotAll. Zero means 5.
	MaxConcurrentCompanies int

	nowFunc func() time.Time
}

// New returns a Reconciler over the given store and classification rules.
func New(s store.Store, rs *rules.RuleSet) *Reconciler {
	return &Reconciler{
		store:      s,
		rules:      rs,
		ScaleRatio: DefaultScaleRatio,
		nowFunc:    time.Now,
	}
}

// Classify buckets instrumentSum against reported total debt. Buckets are
// evaluated in order and the first match wins; reported <= 0 means no
// usable financials.
func Classify(instrumentSum, reported int64) model.DebtClassification {
	switch {
	case reported <= 0:
		return model.ClassNoFinancials
	case instrumentSum == 0:
		return model.ClassMissingAll
	case float64(instrumentSum) < 0.5*float64(reported):
		return model.ClassMissingSignificant
	case float64(instrumentSum) > 2.0*float64(reported):
		return model.ClassExcessSignificant
	case float64(instrumentSum) < 0.8*float64(reported):
		return model.ClassMissingSome
	case float64(instrumentSum) > 1.2*float64(reported):
		return model.ClassExcessSome
	default:
		return model.ClassOK
	}
}

// Snapshot builds the reconciliation snapshot for one company: active
// instrument sum, latest positive reported debt, classification, and any
// anomaly flags.
func (r *Reconciler) Snapshot(ctx context.Context, companyID int64) (*model.DebtSnapshot, error) {
	sum, err := r.store.SumOutstanding(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: sum outstanding for company %d", companyID)
	}

	snap := &model.DebtSnapshot{
		CompanyID:     companyID,
		InstrumentSum: sum,
	}

	reported, err := r.store.LatestReportedDebt(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: reported debt for company %d", companyID)
	}
	if reported != nil {
		snap.ReportedTotalDebt = reported.TotalDebtCents
		snap.FiscalPeriod = reported.FiscalPeriod
	}

	snap.Classification = Classify(snap.InstrumentSum, snap.ReportedTotalDebt)
	if err := r.flagAnomalies(ctx, snap); err != nil {
		return nil, err
	}

	zap.L().Debug("reconciled company",
		zap.Int64("company_id", companyID),
		zap.Int64("instrument_sum_cents", snap.InstrumentSum),
		zap.Int64("reported_cents", snap.ReportedTotalDebt),
		zap.String("classification", string(snap.Classification)),
		zap.Strings("anomalies", snap.Anomalies),
	)
	return snap, nil
}

// flagAnomalies appends advisory flags: instruments past maturity but still
// active, negative reported debt, and amounts whose magnitudes suggest a
// unit mixup. Flags never modify the underlying figures.
func (r *Reconciler) flagAnomalies(ctx context.Context, snap *model.DebtSnapshot) error {
	instruments, err := r.store.ListActiveInstruments(ctx, snap.CompanyID)
	if err != nil {
		return eris.Wrapf(err, "reconcile: list instruments for company %d", snap.CompanyID)
	}

	now := r.nowFunc()
	for _, inst := range instruments {
		if inst.Maturity != nil && inst.Maturity.Before(now) {
			snap.Anomalies = append(snap.Anomalies, fmt.Sprintf("matured_active:%d", inst.ID))
		}
	}

	if snap.ReportedTotalDebt < 0 {
		snap.Anomalies = append(snap.Anomalies, AnomalyNegativeReported)
	}

	ratio := r.ScaleRatio
	if ratio <= 0 {
		ratio = DefaultScaleRatio
	}
	if snap.InstrumentSum > 0 && snap.ReportedTotalDebt > 0 {
		q := float64(snap.InstrumentSum) / float64(snap.ReportedTotalDebt)
		if q >= ratio || q <= 1/ratio {
			snap.Anomalies = append(snap.Anomalies, AnomalyScaleSuspect)
		}
	}
	return nil
}

// Coverage computes linkage coverage for one company. Raw coverage counts
// every active instrument; adjusted coverage removes no-document-expected
// instruments from both the numerator and the denominator.
func (r *Reconciler) Coverage(ctx context.Context, companyID int64) (*model.CoverageMetrics, error) {
	instruments, err := r.store.ListActiveInstruments(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: list instruments for company %d", companyID)
	}
	linked, err := r.store.ListLinkedInstrumentIDs(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: list linked instruments for company %d", companyID)
	}

	m := &model.CoverageMetrics{
		CompanyID:        companyID,
		TotalInstruments: len(instruments),
	}

	linkedExpected := 0
	for _, inst := range instruments {
		isLinked := linked[inst.ID]
		if isLinked {
			m.Linked++
		}
		if _, noDoc := r.rules.NoDocumentReason(&inst); noDoc {
			m.NoDocumentExpected++
			continue
		}
		if _, ok := r.rules.RouteCategory(inst.Type); !ok {
			m.Unclassifiable++
		}
		if isLinked {
			linkedExpected++
		}
	}

	if m.TotalInstruments > 0 {
		m.RawCoveragePct = 100 * float64(m.Linked) / float64(m.TotalInstruments)
	}
	if expected := m.TotalInstruments - m.NoDocumentExpected; expected > 0 {
		m.AdjustedCoveragePct = 100 * float64(linkedExpected) / float64(expected)
	}
	return m, nil
}

// SnapshotAll reconciles the given companies with bounded parallelism.
// A failed company is logged and skipped, never fatal to the batch.
func (r *Reconciler) SnapshotAll(ctx context.Context, companyIDs []int64) ([]model.DebtSnapshot, model.BatchSummary, error) {
	limit := r.MaxConcurrentCompanies
	if limit <= 0 {
		limit = 5
	}

	var (
		mu      sync.Mutex
		snaps   []model.DebtSnapshot
		summary model.BatchSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, companyID := range companyIDs {
		g.Go(func() error {
			snap, err := r.Snapshot(ctx, companyID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.AddReason("company_error")
				zap.L().Error("company reconciliation failed",
					zap.Int64("company_id", companyID),
					zap.Error(err),
				)
				return nil
			}
			summary.Succeeded++
			snaps = append(snaps, *snap)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return snaps, summary, eris.Wrap(err, "reconcile: batch")
	}

	// Deterministic output regardless of goroutine completion order.
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CompanyID < snaps[j].CompanyID })
	return snaps, summary, nil
}
