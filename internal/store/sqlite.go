package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/debtlink/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite for local runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	dbc, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := dbc.Exec(pragma); err != nil {
			dbc.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: dbc}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	cik        TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS instruments (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id        INTEGER NOT NULL REFERENCES companies(id),
	issuer_name       TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	type              TEXT NOT NULL,
	coupon_bps        INTEGER,
	rate_type         TEXT NOT NULL DEFAULT '',
	maturity          DATE,
	principal_cents   INTEGER,
	outstanding_cents INTEGER,
	cusip             TEXT NOT NULL DEFAULT '',
	isin              TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT 1,
	source            TEXT NOT NULL DEFAULT 'filing_extracted',
	dedupe_note       TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id     INTEGER NOT NULL REFERENCES companies(id),
	category       TEXT NOT NULL DEFAULT 'other',
	title          TEXT NOT NULL DEFAULT '',
	filing_date    DATE,
	content        TEXT NOT NULL DEFAULT '',
	content_length INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS links (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	instrument_id     INTEGER NOT NULL REFERENCES instruments(id),
	document_id       INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL DEFAULT 'governs',
	method            TEXT NOT NULL,
	confidence        REAL NOT NULL,
	evidence          TEXT,
	is_verified       BOOLEAN NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (instrument_id, document_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS guarantees (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	instrument_id  INTEGER NOT NULL REFERENCES instruments(id),
	guarantor_name TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS collateral (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	instrument_id INTEGER NOT NULL REFERENCES instruments(id),
	type          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pricing_points (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	instrument_id INTEGER NOT NULL REFERENCES instruments(id),
	price_bps     INTEGER NOT NULL,
	yield_bps     INTEGER,
	observed_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_financials (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id       INTEGER NOT NULL REFERENCES companies(id),
	fiscal_period    TEXT NOT NULL,
	total_debt_cents INTEGER NOT NULL,
	reported_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, fiscal_period)
);

CREATE INDEX IF NOT EXISTS idx_instruments_company ON instruments(company_id);
CREATE INDEX IF NOT EXISTS idx_documents_company_category ON documents(company_id, category);
CREATE INDEX IF NOT EXISTS idx_links_instrument ON links(instrument_id);
CREATE INDEX IF NOT EXISTS idx_links_document ON links(document_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) LatestReportedDebt(ctx context.Context, companyID int64) (*ReportedDebt, error) {
	var rd ReportedDebt
	err := s.db.QueryRowContext(ctx,
		`SELECT company_id, fiscal_period, total_debt_cents, reported_at
		 FROM company_financials
		 WHERE company_id = ? AND total_debt_cents > 0
		 ORDER BY reported_at DESC LIMIT 1`,
		companyID,
	).Scan(&rd.CompanyID, &rd.FiscalPeriod, &rd.TotalDebtCents, &rd.ReportedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest reported debt for company %d", companyID)
	}
	return &rd, nil
}

const sqliteInstrumentSelect = `SELECT id, company_id, issuer_name, name, type, coupon_bps, rate_type,
	maturity, principal_cents, outstanding_cents, cusip, isin, is_active, source,
	created_at, updated_at FROM instruments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteInstrument(row rowScanner, inst *model.Instrument) error {
	return row.Scan(
		&inst.ID, &inst.CompanyID, &inst.IssuerName, &inst.Name, &inst.Type,
		&inst.CouponBps, &inst.RateType, &inst.Maturity,
		&inst.PrincipalCents, &inst.OutstandingCents,
		&inst.CUSIP, &inst.ISIN, &inst.IsActive, &inst.Source,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
}

func (s *SQLiteStore) GetInstrument(ctx context.Context, id int64) (*model.Instrument, error) {
	var inst model.Instrument
	err := scanSQLiteInstrument(s.db.QueryRowContext(ctx, sqliteInstrumentSelect+` WHERE id = ?`, id), &inst)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get instrument %d", id)
	}
	return &inst, nil
}

func (s *SQLiteStore) ListActiveInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error) {
	return s.listInstruments(ctx,
		sqliteInstrumentSelect+` WHERE company_id = ? AND is_active ORDER BY id`, companyID)
}

func (s *SQLiteStore) ListUnlinkedInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error) {
	return s.listInstruments(ctx,
		sqliteInstrumentSelect+` WHERE company_id = ? AND is_active
		 AND NOT EXISTS (SELECT 1 FROM links l WHERE l.instrument_id = instruments.id)
		 ORDER BY id`, companyID)
}

func (s *SQLiteStore) listInstruments(ctx context.Context, query string, args ...any) ([]model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list instruments")
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := scanSQLiteInstrument(rows, &inst); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan instrument")
		}
		out = append(out, inst)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list instruments iterate")
}

func (s *SQLiteStore) SumOutstanding(ctx context.Context, companyID int64) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(outstanding_cents), 0) FROM instruments
		 WHERE company_id = ? AND is_active`,
		companyID,
	).Scan(&sum)
	return sum, eris.Wrapf(err, "sqlite: sum outstanding for company %d", companyID)
}

func (s *SQLiteStore) UpdateInstrumentFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !instrumentColumns[col] {
			return eris.Errorf("sqlite: update instrument: column %q not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	query := `UPDATE instruments SET updated_at = datetime('now')`
	args := []any{}
	for _, col := range cols {
		query += fmt.Sprintf(`, %s = ?`, col)
		args = append(args, fields[col])
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update instrument %d", id)
	}
	return checkRowsAffected(res, "instrument", id)
}

func (s *SQLiteStore) DeactivateInstrument(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE instruments SET is_active = 0, dedupe_note = ?, updated_at = datetime('now') WHERE id = ?`,
		reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate instrument %d", id)
	}
	return checkRowsAffected(res, "instrument", id)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, category, title, filing_date, content, content_length, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.CompanyID, &d.Category, &d.Title, &d.FilingDate, &d.Content, &d.ContentLength, &d.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %d", id)
	}
	return &d, nil
}

func (s *SQLiteStore) ListDocumentsByCategory(ctx context.Context, companyID int64, category model.DocumentCategory) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, category, title, filing_date, content, content_length, created_at
		 FROM documents WHERE company_id = ? AND category = ?
		 ORDER BY filing_date DESC, id`,
		companyID, string(category),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Category, &d.Title, &d.FilingDate,
			&d.Content, &d.ContentLength, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) ReclassifyDocument(ctx context.Context, id int64, category model.DocumentCategory) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET category = ? WHERE id = ?`,
		string(category), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reclassify document %d", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete document %d", id)
}

func (s *SQLiteStore) UpsertLink(ctx context.Context, link *model.Link) (bool, error) {
	rel := link.RelationshipType
	if rel == "" {
		rel = model.RelGoverns
	}

	var evidenceJSON []byte
	if link.Evidence != nil {
		var err error
		evidenceJSON, err = json.Marshal(link.Evidence)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: marshal link evidence")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO links (instrument_id, document_id, relationship_type, method, confidence, evidence, is_verified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (instrument_id, document_id, relationship_type) DO NOTHING`,
		link.InstrumentID, link.DocumentID, rel,
		string(link.Method), link.Confidence, string(evidenceJSON), link.IsVerified,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert link")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert link rows affected")
	}
	return n > 0, nil
}

const sqliteLinkSelect = `SELECT l.id, l.instrument_id, l.document_id, l.relationship_type,
	l.method, l.confidence, l.evidence, l.is_verified, l.created_at FROM links l`

func (s *SQLiteStore) ListLinks(ctx context.Context, companyID int64) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteLinkSelect+` JOIN instruments i ON i.id = l.instrument_id
		 WHERE i.company_id = ? ORDER BY l.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list links")
	}
	defer rows.Close()
	return scanSQLiteLinks(rows)
}

func (s *SQLiteStore) ListLinkedInstrumentIDs(ctx context.Context, companyID int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT l.instrument_id FROM links l
		 JOIN instruments i ON i.id = l.instrument_id
		 WHERE i.company_id = ?`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list linked instrument ids")
	}
	defer rows.Close()

	linked := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan linked id")
		}
		linked[id] = true
	}
	return linked, eris.Wrap(rows.Err(), "sqlite: list linked ids iterate")
}

func (s *SQLiteStore) ListReviewQueue(ctx context.Context, filter ReviewFilter) ([]model.Link, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		sqliteLinkSelect+` WHERE NOT l.is_verified AND l.confidence < ?
		 ORDER BY l.confidence ASC, l.id LIMIT ?`,
		filter.MaxConfidence, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review queue")
	}
	defer rows.Close()
	return scanSQLiteLinks(rows)
}

func scanSQLiteLinks(rows *sql.Rows) ([]model.Link, error) {
	var out []model.Link
	for rows.Next() {
		var l model.Link
		var evidenceJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.InstrumentID, &l.DocumentID, &l.RelationshipType,
			&l.Method, &l.Confidence, &evidenceJSON, &l.IsVerified, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		if evidenceJSON.Valid && evidenceJSON.String != "" {
			if err := json.Unmarshal([]byte(evidenceJSON.String), &l.Evidence); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal link evidence")
			}
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: scan links iterate")
}

func (s *SQLiteStore) VerifyLink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE links SET is_verified = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: verify link %d", id)
	}
	return checkRowsAffected(res, "link", id)
}

func (s *SQLiteStore) ListGuarantees(ctx context.Context, instrumentID int64) ([]model.Guarantee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instrument_id, guarantor_name, created_at FROM guarantees
		 WHERE instrument_id = ? ORDER BY id`,
		instrumentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list guarantees")
	}
	defer rows.Close()

	var out []model.Guarantee
	for rows.Next() {
		var g model.Guarantee
		if err := rows.Scan(&g.ID, &g.InstrumentID, &g.GuarantorName, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan guarantee")
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list guarantees iterate")
}

func (s *SQLiteStore) ListCollateral(ctx context.Context, instrumentID int64) ([]model.Collateral, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instrument_id, type, description, created_at FROM collateral
		 WHERE instrument_id = ? ORDER BY id`,
		instrumentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list collateral")
	}
	defer rows.Close()

	var out []model.Collateral
	for rows.Next() {
		var c model.Collateral
		if err := rows.Scan(&c.ID, &c.InstrumentID, &c.Type, &c.Description, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan collateral")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list collateral iterate")
}

func (s *SQLiteStore) MergeDuplicates(ctx context.Context, spec MergeSpec) error {
	if len(spec.DuplicateIDs) == 0 {
		return nil
	}
	for col := range spec.FieldUpdates {
		if !instrumentColumns[col] {
			return eris.Errorf("sqlite: merge: column %q not updatable", col)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: begin tx")
	}
	defer tx.Rollback()

	dupList, dupArgs := inClause(spec.DuplicateIDs)

	if len(spec.FieldUpdates) > 0 {
		cols := make([]string, 0, len(spec.FieldUpdates))
		for col := range spec.FieldUpdates {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		query := `UPDATE instruments SET updated_at = datetime('now')`
		args := []any{}
		for _, col := range cols {
			query += fmt.Sprintf(`, %s = ?`, col)
			args = append(args, spec.FieldUpdates[col])
		}
		query += ` WHERE id = ?`
		args = append(args, spec.SurvivorID)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return eris.Wrap(err, "sqlite: merge: update survivor")
		}
	}

	// One guarantee per guarantor moves to the survivor; extra rows from
	// duplicates sharing a guarantor fall to the DELETE below.
	if _, err := tx.ExecContext(ctx,
		`UPDATE guarantees SET instrument_id = ?
		 WHERE id IN (
		     SELECT min(id) FROM guarantees
		     WHERE instrument_id IN (`+dupList+`)
		     AND guarantor_name NOT IN (SELECT guarantor_name FROM guarantees WHERE instrument_id = ?)
		     GROUP BY guarantor_name
		 )`,
		append(append([]any{spec.SurvivorID}, dupArgs...), spec.SurvivorID)...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: reparent guarantees")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM guarantees WHERE instrument_id IN (`+dupList+`)`, dupArgs...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: drop duplicate guarantees")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE collateral SET instrument_id = ?
		 WHERE id IN (
		     SELECT min(id) FROM collateral
		     WHERE instrument_id IN (`+dupList+`)
		     AND type NOT IN (SELECT type FROM collateral WHERE instrument_id = ?)
		     GROUP BY type
		 )`,
		append(append([]any{spec.SurvivorID}, dupArgs...), spec.SurvivorID)...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: reparent collateral")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collateral WHERE instrument_id IN (`+dupList+`)`, dupArgs...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: drop duplicate collateral")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pricing_points SET instrument_id = ? WHERE instrument_id IN (`+dupList+`)`,
		append([]any{spec.SurvivorID}, dupArgs...)...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: reparent pricing")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE instruments SET is_active = 0, dedupe_note = ?, updated_at = datetime('now')
		 WHERE id IN (`+dupList+`)`,
		append([]any{spec.AuditNote}, dupArgs...)...,
	); err != nil {
		return eris.Wrap(err, "sqlite: merge: deactivate duplicates")
	}

	return eris.Wrap(tx.Commit(), "sqlite: merge: commit tx")
}

// inClause builds a "?, ?, ?" placeholder list and its argument slice.
func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %d", entity, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}
