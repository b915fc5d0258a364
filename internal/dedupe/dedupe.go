// Package dedupe detects near-duplicate instrument records and reduces
// each group to one surviving record. Duplicates are deactivated with an
// audit marker, never hard-deleted, and merges commit atomically through
// the store.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// GroupPlan is the resolved merge plan for one duplicate group.
type GroupPlan struct {
	SurvivorID   int64          `json:"survivor_id"`
	DuplicateIDs []int64        `json:"duplicate_ids"`
	FieldUpdates map[string]any `json:"field_updates,omitempty"`
	// Conflicts lists fields where survivor and duplicate disagree on
	// non-null values. The survivor's value is kept; the conflict is
	// recorded, never silently overwritten.
	Conflicts []string `json:"conflicts,omitempty"`
}

// Report summarizes one dedupe pass over a company.
type Report struct {
	CompanyID int64 `json:"company_id"`
	// Merged groups were applied (or would be, in dry-run).
	Merged []GroupPlan `json:"merged,omitempty"`
	// ManualReview groups share a duplicate key but have genuinely
	// different issuers after alias normalization; they are never
	// auto-merged.
	ManualReview []GroupPlan `json:"manual_review,omitempty"`
	DryRun       bool        `json:"dry_run"`
}

// Deduplicator groups near-identical instruments and merges each group.
type Deduplicator struct {
	store store.Store
	rules *rules.RuleSet

	// DryRun computes plans without writing.
	DryRun bool

	// MaxConcurrentCompanies bounds company-level parallelism in
	// DedupeAll. Zero means the default of 5.
	MaxConcurrentCompanies int
}

// New builds a Deduplicator over a store and ruleset.
func New(s store.Store, rs *rules.RuleSet) *Deduplicator {
	return &Deduplicator{store: s, rules: rs}
}

// DedupeCompany detects and merges duplicate groups for one company.
// Re-running converges: an already-merged group has one active member
// left and is no longer a group.
func (d *Deduplicator) DedupeCompany(ctx context.Context, companyID int64) (*Report, error) {
	instruments, err := d.store.ListActiveInstruments(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "dedupe: list instruments for company %d", companyID)
	}

	report := &Report{CompanyID: companyID, DryRun: d.DryRun}

	for _, group := range d.groupDuplicates(instruments) {
		if d.issuersDiverge(group) {
			report.ManualReview = append(report.ManualReview, planForReview(group))
			continue
		}

		plan := buildPlan(group)
		if !d.DryRun {
			spec := store.MergeSpec{
				SurvivorID:   plan.SurvivorID,
				DuplicateIDs: plan.DuplicateIDs,
				FieldUpdates: plan.FieldUpdates,
				AuditNote:    fmt.Sprintf("duplicate_of:%d", plan.SurvivorID),
			}
			if err := d.store.MergeDuplicates(ctx, spec); err != nil {
				return nil, eris.Wrapf(err, "dedupe: merge group surviving %d", plan.SurvivorID)
			}
		}
		zap.L().Info("duplicate group merged",
			zap.Int64("company_id", companyID),
			zap.Int64("survivor_id", plan.SurvivorID),
			zap.Int64s("duplicate_ids", plan.DuplicateIDs),
			zap.Bool("dry_run", d.DryRun),
		)
		report.Merged = append(report.Merged, plan)
	}

	return report, nil
}

// DedupeAll runs DedupeCompany across companies with bounded parallelism.
func (d *Deduplicator) DedupeAll(ctx context.Context, companyIDs []int64) ([]*Report, error) {
	limit := d.MaxConcurrentCompanies
	if limit <= 0 {
		limit = 5
	}

	reports := make([]*Report, len(companyIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, companyID := range companyIDs {
		g.Go(func() error {
			report, err := d.DedupeCompany(ctx, companyID)
			if err != nil {
				zap.L().Error("company dedupe failed",
					zap.Int64("company_id", companyID),
					zap.Error(err),
				)
				return nil
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reports, eris.Wrap(err, "dedupe: batch")
	}
	return reports, nil
}

// groupDuplicates unions instruments sharing either duplicate key:
// (issuer, name, maturity) after normalization, or (rate, maturity year).
// Groups are returned in deterministic order of their lowest member ID.
func (d *Deduplicator) groupDuplicates(instruments []model.Instrument) [][]*model.Instrument {
	byKey := make(map[string][]int) // key -> indices into instruments

	for i := range instruments {
		inst := &instruments[i]
		for _, key := range d.duplicateKeys(inst) {
			byKey[key] = append(byKey[key], i)
		}
	}

	// Union-find over instrument indices so a record matching both keys
	// pulls the two groups together.
	parent := make([]int, len(instruments))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for _, members := range byKey {
		for i := 1; i < len(members); i++ {
			union(members[0], members[i])
		}
	}

	grouped := make(map[int][]*model.Instrument)
	for i := range instruments {
		root := find(i)
		grouped[root] = append(grouped[root], &instruments[i])
	}

	var roots []int
	for root, members := range grouped {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	groups := make([][]*model.Instrument, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, grouped[root])
	}
	return groups
}

// duplicateKeys returns the grouping keys an instrument participates in.
func (d *Deduplicator) duplicateKeys(inst *model.Instrument) []string {
	var keys []string

	issuer := d.rules.CanonicalIssuer(inst.IssuerName)
	name := rules.NormalizeName(inst.Name)
	if name != "" {
		maturity := ""
		if inst.Maturity != nil {
			maturity = inst.Maturity.Format("2006-01-02")
		}
		keys = append(keys, "inm|"+issuer+"|"+name+"|"+maturity)
	}

	if pct := inst.CouponPct(); pct != nil && inst.MaturityYear() != 0 {
		keys = append(keys, "ry|"+extract.NormalizeRate(*pct)+"|"+strconv.Itoa(inst.MaturityYear()))
	}

	return keys
}

// issuersDiverge reports whether a group spans more than one canonical
// issuer after alias normalization.
func (d *Deduplicator) issuersDiverge(group []*model.Instrument) bool {
	first := d.rules.CanonicalIssuer(group[0].IssuerName)
	for _, inst := range group[1:] {
		if d.rules.CanonicalIssuer(inst.IssuerName) != first {
			return true
		}
	}
	return false
}

// completenessScore ranks survivor candidates: outstanding amount +4,
// CUSIP +2, ISIN +1.
func completenessScore(inst *model.Instrument) int {
	score := 0
	if inst.OutstandingCents != nil {
		score += 4
	}
	if inst.CUSIP != "" {
		score += 2
	}
	if inst.ISIN != "" {
		score += 1
	}
	return score
}

// buildPlan selects the survivor and computes field fills and conflicts.
func buildPlan(group []*model.Instrument) GroupPlan {
	ordered := make([]*model.Instrument, len(group))
	copy(ordered, group)
	// Deterministic scan order for first-non-null: creation time, then ID.
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	survivor := ordered[0]
	for _, inst := range ordered[1:] {
		if completenessScore(inst) > completenessScore(survivor) {
			survivor = inst
		}
	}

	plan := GroupPlan{SurvivorID: survivor.ID}
	for _, inst := range ordered {
		if inst.ID != survivor.ID {
			plan.DuplicateIDs = append(plan.DuplicateIDs, inst.ID)
		}
	}

	updates := make(map[string]any)
	for _, inst := range ordered {
		if inst.ID == survivor.ID {
			continue
		}
		mergeFields(survivor, inst, updates, &plan.Conflicts)
	}
	if len(updates) > 0 {
		plan.FieldUpdates = updates
	}
	return plan
}

// mergeFields copies duplicate values onto survivor nulls (first-non-null
// wins, so fields already chosen are left alone) and records conflicts
// where both sides hold different non-null values.
func mergeFields(survivor, dup *model.Instrument, updates map[string]any, conflicts *[]string) {
	fillInt64 := func(col string, sv, dv *int64) {
		switch {
		case dv == nil:
		case sv == nil:
			if _, done := updates[col]; !done {
				updates[col] = *dv
			}
		case *sv != *dv:
			*conflicts = append(*conflicts, fmt.Sprintf("%s: survivor %d kept %d over %d from %d",
				col, survivor.ID, *sv, *dv, dup.ID))
		}
	}
	fillString := func(col, sv, dv string) {
		switch {
		case dv == "":
		case sv == "":
			if _, done := updates[col]; !done {
				updates[col] = dv
			}
		case sv != dv:
			*conflicts = append(*conflicts, fmt.Sprintf("%s: survivor %d kept %q over %q from %d",
				col, survivor.ID, sv, dv, dup.ID))
		}
	}

	fillInt64("coupon_bps", survivor.CouponBps, dup.CouponBps)
	fillInt64("principal_cents", survivor.PrincipalCents, dup.PrincipalCents)
	fillInt64("outstanding_cents", survivor.OutstandingCents, dup.OutstandingCents)
	fillString("rate_type", string(survivor.RateType), string(dup.RateType))
	fillString("cusip", survivor.CUSIP, dup.CUSIP)
	fillString("isin", survivor.ISIN, dup.ISIN)

	if dup.Maturity != nil {
		if survivor.Maturity == nil {
			if _, done := updates["maturity"]; !done {
				updates["maturity"] = *dup.Maturity
			}
		} else if !survivor.Maturity.Equal(*dup.Maturity) {
			*conflicts = append(*conflicts, fmt.Sprintf("maturity: survivor %d kept %s over %s from %d",
				survivor.ID, survivor.Maturity.Format("2006-01-02"), dup.Maturity.Format("2006-01-02"), dup.ID))
		}
	}
}

func planForReview(group []*model.Instrument) GroupPlan {
	plan := GroupPlan{SurvivorID: group[0].ID}
	for _, inst := range group[1:] {
		plan.DuplicateIDs = append(plan.DuplicateIDs, inst.ID)
	}
	sort.Slice(plan.DuplicateIDs, func(i, j int) bool { return plan.DuplicateIDs[i] < plan.DuplicateIDs[j] })
	return plan
}
