package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/db"
	"github.com/sells-group/debtlink/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	cik        TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS instruments (
	id                BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	company_id        BIGINT NOT NULL REFERENCES companies(id),
	issuer_name       TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	type              TEXT NOT NULL,
	coupon_bps        BIGINT,
	rate_type         TEXT NOT NULL DEFAULT '',
	maturity          DATE,
	principal_cents   BIGINT,
	outstanding_cents BIGINT,
	cusip             TEXT NOT NULL DEFAULT '',
	isin              TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT true,
	source            TEXT NOT NULL DEFAULT 'filing_extracted',
	dedupe_note       TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	company_id     BIGINT NOT NULL REFERENCES companies(id),
	category       TEXT NOT NULL DEFAULT 'other',
	title          TEXT NOT NULL DEFAULT '',
	filing_date    DATE,
	content        TEXT NOT NULL DEFAULT '',
	content_length INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS links (
	id                BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	instrument_id     BIGINT NOT NULL REFERENCES instruments(id),
	document_id       BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL DEFAULT 'governs',
	method            TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	evidence          JSONB,
	is_verified       BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (instrument_id, document_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS guarantees (
	id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	instrument_id  BIGINT NOT NULL REFERENCES instruments(id),
	guarantor_name TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS collateral (
	id            BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	instrument_id BIGINT NOT NULL REFERENCES instruments(id),
	type          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pricing_points (
	id            BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	instrument_id BIGINT NOT NULL REFERENCES instruments(id),
	price_bps     BIGINT NOT NULL,
	yield_bps     BIGINT,
	observed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_financials (
	id               BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	company_id       BIGINT NOT NULL REFERENCES companies(id),
	fiscal_period    TEXT NOT NULL,
	total_debt_cents BIGINT NOT NULL,
	reported_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, fiscal_period)
);

CREATE INDEX IF NOT EXISTS idx_instruments_company ON instruments(company_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_documents_company_category ON documents(company_id, category);
CREATE INDEX IF NOT EXISTS idx_links_instrument ON links(instrument_id);
CREATE INDEX IF NOT EXISTS idx_links_document ON links(document_id);
CREATE INDEX IF NOT EXISTS idx_links_review ON links(confidence) WHERE NOT is_verified;
CREATE INDEX IF NOT EXISTS idx_guarantees_instrument ON guarantees(instrument_id);
CREATE INDEX IF NOT EXISTS idx_collateral_instrument ON collateral(instrument_id);
CREATE INDEX IF NOT EXISTS idx_pricing_instrument ON pricing_points(instrument_id);
CREATE INDEX IF NOT EXISTS idx_financials_company ON company_financials(company_id, reported_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) LatestReportedDebt(ctx context.Context, companyID int64) (*ReportedDebt, error) {
	var rd ReportedDebt
	err := s.pool.QueryRow(ctx,
		`SELECT company_id, fiscal_period, total_debt_cents, reported_at
		 FROM company_financials
		 WHERE company_id = $1 AND total_debt_cents > 0
		 ORDER BY reported_at DESC LIMIT 1`,
		companyID,
	).Scan(&rd.CompanyID, &rd.FiscalPeriod, &rd.TotalDebtCents, &rd.ReportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest reported debt for company %d", companyID)
	}
	return &rd, nil
}

const instrumentSelect = `SELECT id, company_id, issuer_name, name, type, coupon_bps, rate_type,
	maturity, principal_cents, outstanding_cents, cusip, isin, is_active, source,
	created_at, updated_at FROM instruments`

func scanInstrument(row pgx.Row, inst *model.Instrument) error {
	return row.Scan(
		&inst.ID, &inst.CompanyID, &inst.IssuerName, &inst.Name, &inst.Type,
		&inst.CouponBps, &inst.RateType, &inst.Maturity,
		&inst.PrincipalCents, &inst.OutstandingCents,
		&inst.CUSIP, &inst.ISIN, &inst.IsActive, &inst.Source,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
}

func (s *PostgresStore) GetInstrument(ctx context.Context, id int64) (*model.Instrument, error) {
	var inst model.Instrument
	err := scanInstrument(s.pool.QueryRow(ctx, instrumentSelect+` WHERE id = $1`, id), &inst)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get instrument %d", id)
	}
	return &inst, nil
}

func (s *PostgresStore) ListActiveInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error) {
	return s.listInstruments(ctx,
		instrumentSelect+` WHERE company_id = $1 AND is_active ORDER BY id`, companyID)
}

func (s *PostgresStore) ListUnlinkedInstruments(ctx context.Context, companyID int64) ([]model.Instrument, error) {
	return s.listInstruments(ctx,
		instrumentSelect+` WHERE company_id = $1 AND is_active
		 AND NOT EXISTS (SELECT 1 FROM links l WHERE l.instrument_id = instruments.id)
		 ORDER BY id`, companyID)
}

func (s *PostgresStore) listInstruments(ctx context.Context, query string, args ...any) ([]model.Instrument, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list instruments")
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := scanInstrument(rows, &inst); err != nil {
			return nil, eris.Wrap(err, "postgres: scan instrument")
		}
		out = append(out, inst)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list instruments iterate")
}

func (s *PostgresStore) SumOutstanding(ctx context.Context, companyID int64) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(outstanding_cents), 0) FROM instruments
		 WHERE company_id = $1 AND is_active`,
		companyID,
	).Scan(&sum)
	return sum, eris.Wrapf(err, "postgres: sum outstanding for company %d", companyID)
}

func (s *PostgresStore) UpdateInstrumentFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !instrumentColumns[col] {
			return eris.Errorf("postgres: update instrument: column %q not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	query := `UPDATE instruments SET updated_at = now()`
	args := []any{}
	argIdx := 1
	for _, col := range cols {
		query += fmt.Sprintf(`, %s = $%d`, col, argIdx)
		args = append(args, fields[col])
		argIdx++
	}
	query += fmt.Sprintf(` WHERE id = $%d`, argIdx)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update instrument %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("instrument not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) DeactivateInstrument(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE instruments SET is_active = false, dedupe_note = $1, updated_at = now() WHERE id = $2`,
		reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate instrument %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("instrument not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, category, title, filing_date, content, content_length, created_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.CompanyID, &d.Category, &d.Title, &d.FilingDate, &d.Content, &d.ContentLength, &d.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %d", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListDocumentsByCategory(ctx context.Context, companyID int64, category model.DocumentCategory) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, category, title, filing_date, content, content_length, created_at
		 FROM documents WHERE company_id = $1 AND category = $2
		 ORDER BY filing_date DESC NULLS LAST, id`,
		companyID, string(category),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Category, &d.Title, &d.FilingDate,
			&d.Content, &d.ContentLength, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) ReclassifyDocument(ctx context.Context, id int64, category model.DocumentCategory) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET category = $1 WHERE id = $2`,
		string(category), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reclassify document %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	// Links cascade via FK.
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete document %d", id)
}

func (s *PostgresStore) UpsertLink(ctx context.Context, link *model.Link) (bool, error) {
	rel := link.RelationshipType
	if rel == "" {
		rel = model.RelGoverns
	}

	var evidenceJSON []byte
	if link.Evidence != nil {
		var err error
		evidenceJSON, err = json.Marshal(link.Evidence)
		if err != nil {
			return false, eris.Wrap(err, "postgres: marshal link evidence")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO links (instrument_id, document_id, relationship_type, method, confidence, evidence, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (instrument_id, document_id, relationship_type) DO NOTHING`,
		link.InstrumentID, link.DocumentID, rel,
		string(link.Method), link.Confidence, evidenceJSON, link.IsVerified,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: upsert link")
	}
	return tag.RowsAffected() > 0, nil
}

const linkSelect = `SELECT l.id, l.instrument_id, l.document_id, l.relationship_type,
	l.method, l.confidence, l.evidence, l.is_verified, l.created_at FROM links l`

func (s *PostgresStore) ListLinks(ctx context.Context, companyID int64) ([]model.Link, error) {
	rows, err := s.pool.Query(ctx,
		linkSelect+` JOIN instruments i ON i.id = l.instrument_id
		 WHERE i.company_id = $1 ORDER BY l.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list links")
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (s *PostgresStore) ListLinkedInstrumentIDs(ctx context.Context, companyID int64) (map[int64]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT l.instrument_id FROM links l
		 JOIN instruments i ON i.id = l.instrument_id
		 WHERE i.company_id = $1`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list linked instrument ids")
	}
	defer rows.Close()

	linked := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan linked id")
		}
		linked[id] = true
	}
	return linked, eris.Wrap(rows.Err(), "postgres: list linked ids iterate")
}

func (s *PostgresStore) ListReviewQueue(ctx context.Context, filter ReviewFilter) ([]model.Link, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		linkSelect+` WHERE NOT l.is_verified AND l.confidence < $1
		 ORDER BY l.confidence ASC, l.id LIMIT $2`,
		filter.MaxConfidence, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review queue")
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLinks(rows pgx.Rows) ([]model.Link, error) {
	var out []model.Link
	for rows.Next() {
		var l model.Link
		var evidenceJSON []byte
		if err := rows.Scan(&l.ID, &l.InstrumentID, &l.DocumentID, &l.RelationshipType,
			&l.Method, &l.Confidence, &evidenceJSON, &l.IsVerified, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		if len(evidenceJSON) > 0 {
			if err := json.Unmarshal(evidenceJSON, &l.Evidence); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal link evidence")
			}
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: scan links iterate")
}

func (s *PostgresStore) VerifyLink(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE links SET is_verified = true WHERE id = $1`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: verify link %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("link not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) ListGuarantees(ctx context.Context, instrumentID int64) ([]model.Guarantee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, guarantor_name, created_at FROM guarantees
		 WHERE instrument_id = $1 ORDER BY id`,
		instrumentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list guarantees")
	}
	defer rows.Close()

	var out []model.Guarantee
	for rows.Next() {
		var g model.Guarantee
		if err := rows.Scan(&g.ID, &g.InstrumentID, &g.GuarantorName, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan guarantee")
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list guarantees iterate")
}

func (s *PostgresStore) ListCollateral(ctx context.Context, instrumentID int64) ([]model.Collateral, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, type, description, created_at FROM collateral
		 WHERE instrument_id = $1 ORDER BY id`,
		instrumentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list collateral")
	}
	defer rows.Close()

	var out []model.Collateral
	for rows.Next() {
		var c model.Collateral
		if err := rows.Scan(&c.ID, &c.InstrumentID, &c.Type, &c.Description, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan collateral")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list collateral iterate")
}

// MergeDuplicates applies a duplicate-group merge in one transaction:
// survivor field fixups, child reparenting (dropping children that would
// duplicate an equivalent survivor row), and duplicate deactivation.
func (s *PostgresStore) MergeDuplicates(ctx context.Context, spec MergeSpec) error {
	if len(spec.DuplicateIDs) == 0 {
		return nil
	}
	for col := range spec.FieldUpdates {
		if !instrumentColumns[col] {
			return eris.Errorf("postgres: merge: column %q not updatable", col)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: merge: begin tx")
	}
	defer tx.Rollback(ctx)

	if len(spec.FieldUpdates) > 0 {
		cols := make([]string, 0, len(spec.FieldUpdates))
		for col := range spec.FieldUpdates {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		query := `UPDATE instruments SET updated_at = now()`
		args := []any{}
		argIdx := 1
		for _, col := range cols {
			query += fmt.Sprintf(`, %s = $%d`, col, argIdx)
			args = append(args, spec.FieldUpdates[col])
			argIdx++
		}
		query += fmt.Sprintf(` WHERE id = $%d`, argIdx)
		args = append(args, spec.SurvivorID)

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return eris.Wrap(err, "postgres: merge: update survivor")
		}
	}

	// Reparent one guarantee per guarantor unless the survivor already has
	// it. Duplicates sharing a guarantor contribute a single row; the rest
	// fall to the DELETE below.
	if _, err := tx.Exec(ctx,
		`UPDATE guarantees SET instrument_id = $1
		 WHERE id IN (
		     SELECT min(id) FROM guarantees
		     WHERE instrument_id = ANY($2)
		     AND guarantor_name NOT IN (SELECT guarantor_name FROM guarantees WHERE instrument_id = $1)
		     GROUP BY guarantor_name
		 )`,
		spec.SurvivorID, spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: reparent guarantees")
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM guarantees WHERE instrument_id = ANY($1)`,
		spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: drop duplicate guarantees")
	}

	// Same one-row-per-type rule for collateral.
	if _, err := tx.Exec(ctx,
		`UPDATE collateral SET instrument_id = $1
		 WHERE id IN (
		     SELECT min(id) FROM collateral
		     WHERE instrument_id = ANY($2)
		     AND type NOT IN (SELECT type FROM collateral WHERE instrument_id = $1)
		     GROUP BY type
		 )`,
		spec.SurvivorID, spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: reparent collateral")
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM collateral WHERE instrument_id = ANY($1)`,
		spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: drop duplicate collateral")
	}

	// Pricing history has no equivalence key; keep every observation.
	if _, err := tx.Exec(ctx,
		`UPDATE pricing_points SET instrument_id = $1 WHERE instrument_id = ANY($2)`,
		spec.SurvivorID, spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: reparent pricing")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE instruments SET is_active = false, dedupe_note = $1, updated_at = now()
		 WHERE id = ANY($2)`,
		spec.AuditNote, spec.DuplicateIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: deactivate duplicates")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: merge: commit tx")
}
