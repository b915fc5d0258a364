// Package ingest loads filing-extraction export files into the store.
// Exports arrive as JSON dumps of companies, instruments, documents, and
// reported financials; loading upserts by primary key so re-importing the
// same file is a no-op.
package ingest

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/db"
	"github.com/sells-group/debtlink/internal/model"
)

// Company is the minimal company row carried in an export.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	CIK  string `json:"cik,omitempty"`
}

// Financial is one reported total-debt observation.
type Financial struct {
	CompanyID      int64  `json:"company_id"`
	FiscalPeriod   string `json:"fiscal_period"`
	TotalDebtCents int64  `json:"total_debt_cents"`
}

// Export is the filing-extraction collaborator's dump format. Any section
// may be empty.
type Export struct {
	Companies   []Company          `json:"companies,omitempty"`
	Instruments []model.Instrument `json:"instruments,omitempty"`
	Documents   []model.Document   `json:"documents,omitempty"`
	Financials  []Financial        `json:"financials,omitempty"`
}

// Summary counts rows written per section.
type Summary struct {
	Companies   int64 `json:"companies"`
	Instruments int64 `json:"instruments"`
	Documents   int64 `json:"documents"`
	Financials  int64 `json:"financials"`
}

// ReadExport parses an export file.
func ReadExport(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	var e Export
	dec := json.NewDecoder(f)
	if err := dec.Decode(&e); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	return &e, nil
}

// Validate rejects rows the schema would refuse anyway, with a readable
// error instead of a constraint violation mid-COPY.
func (e *Export) Validate() error {
	for i, c := range e.Companies {
		if c.ID == 0 || c.Name == "" {
			return eris.Errorf("ingest: company[%d]: id and name are required", i)
		}
	}
	for i, inst := range e.Instruments {
		if inst.ID == 0 || inst.CompanyID == 0 || inst.Name == "" {
			return eris.Errorf("ingest: instrument[%d]: id, company_id, and name are required", i)
		}
	}
	for i, doc := range e.Documents {
		if doc.ID == 0 || doc.CompanyID == 0 {
			return eris.Errorf("ingest: document[%d]: id and company_id are required", i)
		}
	}
	for i, fin := range e.Financials {
		if fin.CompanyID == 0 || fin.FiscalPeriod == "" {
			return eris.Errorf("ingest: financial[%d]: company_id and fiscal_period are required", i)
		}
	}
	return nil
}

// Load writes an export in foreign-key order. The source tag overrides
// each instrument's provenance; empty keeps the record's own tag, falling
// back to filing_extracted.
func Load(ctx context.Context, pool db.Pool, e *Export, source string) (Summary, error) {
	var sum Summary

	if err := e.Validate(); err != nil {
		return sum, err
	}

	if len(e.Companies) > 0 {
		rows := make([][]any, 0, len(e.Companies))
		for _, c := range e.Companies {
			rows = append(rows, []any{c.ID, c.Name, c.CIK})
		}
		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        "companies",
			Columns:      []string{"id", "name", "cik"},
			ConflictKeys: []string{"id"},
		}, rows)
		if err != nil {
			return sum, err
		}
		sum.Companies = n
	}

	if len(e.Instruments) > 0 {
		rows := make([][]any, 0, len(e.Instruments))
		for _, inst := range e.Instruments {
			tag := source
			if tag == "" {
				tag = inst.Source
			}
			if tag == "" {
				tag = model.SourceFiling
			}
			rows = append(rows, []any{
				inst.ID, inst.CompanyID, inst.IssuerName, inst.Name, string(inst.Type),
				inst.CouponBps, string(inst.RateType), inst.Maturity,
				inst.PrincipalCents, inst.OutstandingCents,
				inst.CUSIP, inst.ISIN, true, tag,
			})
		}
		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table: "instruments",
			Columns: []string{
				"id", "company_id", "issuer_name", "name", "type",
				"coupon_bps", "rate_type", "maturity",
				"principal_cents", "outstanding_cents",
				"cusip", "isin", "is_active", "source",
			},
			ConflictKeys: []string{"id"},
		}, rows)
		if err != nil {
			return sum, err
		}
		sum.Instruments = n
	}

	if len(e.Documents) > 0 {
		rows := make([][]any, 0, len(e.Documents))
		for _, doc := range e.Documents {
			length := doc.ContentLength
			if length == 0 {
				length = len(doc.Content)
			}
			category := doc.Category
			if category == "" {
				category = model.CategoryOther
			}
			rows = append(rows, []any{
				doc.ID, doc.CompanyID, string(category), doc.Title,
				doc.FilingDate, doc.Content, length,
			})
		}
		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table: "documents",
			Columns: []string{
				"id", "company_id", "category", "title",
				"filing_date", "content", "content_length",
			},
			ConflictKeys: []string{"id"},
		}, rows)
		if err != nil {
			return sum, err
		}
		sum.Documents = n
	}

	if len(e.Financials) > 0 {
		rows := make([][]any, 0, len(e.Financials))
		for _, fin := range e.Financials {
			rows = append(rows, []any{fin.CompanyID, fin.FiscalPeriod, fin.TotalDebtCents})
		}
		n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        "company_financials",
			Columns:      []string{"company_id", "fiscal_period", "total_debt_cents"},
			ConflictKeys: []string{"company_id", "fiscal_period"},
		}, rows)
		if err != nil {
			return sum, err
		}
		sum.Financials = n
	}

	zap.L().Info("export loaded",
		zap.Int64("companies", sum.Companies),
		zap.Int64("instruments", sum.Instruments),
		zap.Int64("documents", sum.Documents),
		zap.Int64("financials", sum.Financials),
	)
	return sum, nil
}
