// Package store persists instruments, documents, and links. Two drivers
// ship: Postgres (pgxpool) for production and SQLite (modernc) for local
// runs. Both enforce the same semantics: link upserts are idempotent,
// instruments are deactivated rather than deleted, and duplicate merges
// commit atomically.
package store

import (
	"context"
	"time"

	"github.com/sells-group/debtlink/internal/model"
)

// ReportedDebt is a company's most recent positive reported total debt.
type ReportedDebt struct {
	CompanyID      int64     `json:"company_id"`
	FiscalPeriod   string    `json:"fiscal_period"`
	TotalDebtCents int64     `json:"total_debt_cents"`
	ReportedAt     time.Time `json:"reported_at"`
}

// MergeSpec describes one duplicate-group merge: copy the given field
// values onto the survivor, reparent or drop child records from each
// duplicate, then deactivate the duplicates with an audit marker. The
// whole spec commits in a single transaction.
type MergeSpec struct {
	SurvivorID   int64
	DuplicateIDs []int64
	// FieldUpdates holds survivor columns to fill from duplicate values
	// (first-non-null-wins, resolved by the deduplicator before calling).
	FieldUpdates map[string]any
	AuditNote    string
}

// ReviewFilter selects unverified links for the human review queue.
type ReviewFilter struct {
	MaxConfidence float64
	Limit         int
}

// Store defines the persistence interface for the linkage engine.
type Store interface {
	// Companies
	ListCompanyIDs(ctx context.Context) ([]int64, error)
	LatestReportedDebt(ctx context.Context, companyID int64) (*ReportedDebt, error)

	// Instruments
	GetInstrument(ctx context.Context, id int64) (*model.Instrument, error)
	ListActiveInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error)
	ListUnlinkedInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error)
	SumOutstanding(ctx context.Context, companyID int64) (int64, error)
	UpdateInstrumentFields(ctx context.Context, id int64, fields map[string]any) error
	DeactivateInstrument(ctx context.Context, id int64, reason string) error

	// Documents
	GetDocument(ctx context.Context, id int64) (*model.Document, error)
	ListDocumentsByCategory(ctx context.Context, companyID int64, category model.DocumentCategory) ([]model.Document, error)
	ReclassifyDocument(ctx context.Context, id int64, category model.DocumentCategory) error
	DeleteDocument(ctx context.Context, id int64) error

	// Links
	UpsertLink(ctx context.Context, link *model.Link) (created bool, err error)
	ListLinks(ctx context.Context, companyID int64) ([]model.Link, error)
	ListLinkedInstrumentIDs(ctx context.Context, companyID int64) (map[int64]bool, error)
	ListReviewQueue(ctx context.Context, filter ReviewFilter) ([]model.Link, error)
	VerifyLink(ctx context.Context, id int64) error

	// Dedup
	ListGuarantees(ctx context.Context, instrumentID int64) ([]model.Guarantee, error)
	ListCollateral(ctx context.Context, instrumentID int64) ([]model.Collateral, error)
	MergeDuplicates(ctx context.Context, spec MergeSpec) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// instrumentColumns whitelists columns UpdateInstrumentFields and
// MergeSpec.FieldUpdates may touch. Anything else is a programming error.
var instrumentColumns = map[string]bool{
	"issuer_name":       true,
	"name":              true,
	"type":              true,
	"coupon_bps":        true,
	"rate_type":         true,
	"maturity":          true,
	"principal_cents":   true,
	"outstanding_cents": true,
	"cusip":             true,
	"isin":              true,
}
