// Package model defines the core entities of the linkage and
// reconciliation engine: debt instruments, governing documents, and the
// links between them.
package model

import "time"

// InstrumentType categorizes a debt instrument.
type InstrumentType string

const (
	TypeBond             InstrumentType = "bond"
	TypeNote             InstrumentType = "note"
	TypeDebenture        InstrumentType = "debenture"
	TypeConvertible      InstrumentType = "convertible"
	TypeSubordinated     InstrumentType = "subordinated"
	TypeTermLoan         InstrumentType = "term_loan"
	TypeTermLoanA        InstrumentType = "term_loan_a"
	TypeTermLoanB        InstrumentType = "term_loan_b"
	TypeRevolver         InstrumentType = "revolver"
	TypeABL              InstrumentType = "abl"
	TypeCreditFacility   InstrumentType = "credit_facility"
	TypeCommercialPaper  InstrumentType = "commercial_paper"
	TypeFinanceLease     InstrumentType = "finance_lease"
	TypeLetterOfCredit   InstrumentType = "letter_of_credit"
	TypeSecuritization   InstrumentType = "securitization"
	TypeIntercompany     InstrumentType = "intercompany"
	TypeBilateralLine    InstrumentType = "bilateral_line"
	TypeForeignFacility  InstrumentType = "foreign_facility"
	TypeOtherDebt        InstrumentType = "other"
)

// RateType describes how an instrument's coupon is set.
type RateType string

const (
	RateFixed    RateType = "fixed"
	RateFloating RateType = "floating"
	RateMixed    RateType = "mixed"
)

// Source provenance tags for instruments.
const (
	SourceFiling    = "filing_extracted"
	SourceDiscovery = "discovery_service"
)

// Instrument is a discrete unit of company debt extracted from filings.
// Monetary amounts are integer cents; coupon rates are basis points.
// Instruments are soft-deleted: IsActive=false excludes a record from
// every aggregate and matching pass but preserves it for audit.
type Instrument struct {
	ID         int64          `json:"id" db:"id"`
	CompanyID  int64          `json:"company_id" db:"company_id"`
	IssuerName string         `json:"issuer_name" db:"issuer_name"`
	Name       string         `json:"name" db:"name"`
	Type       InstrumentType `json:"type" db:"type"`

	CouponBps *int64     `json:"coupon_bps,omitempty" db:"coupon_bps"`
	RateType  RateType   `json:"rate_type,omitempty" db:"rate_type"`
	Maturity  *time.Time `json:"maturity,omitempty" db:"maturity"`

	PrincipalCents   *int64 `json:"principal_cents,omitempty" db:"principal_cents"`
	OutstandingCents *int64 `json:"outstanding_cents,omitempty" db:"outstanding_cents"`

	CUSIP string `json:"cusip,omitempty" db:"cusip"`
	ISIN  string `json:"isin,omitempty" db:"isin"`

	IsActive bool   `json:"is_active" db:"is_active"`
	Source   string `json:"source" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CouponPct returns the coupon as a percentage (e.g. 450 bps -> 4.50),
// or nil when the instrument has no coupon.
func (i *Instrument) CouponPct() *float64 {
	if i.CouponBps == nil {
		return nil
	}
	pct := float64(*i.CouponBps) / 100.0
	return &pct
}

// MaturityYear returns the four-digit maturity year, or 0 when unset.
func (i *Instrument) MaturityYear() int {
	if i.Maturity == nil {
		return 0
	}
	return i.Maturity.Year()
}

// Guarantee is a child record naming an entity liable for an instrument.
type Guarantee struct {
	ID            int64     `json:"id" db:"id"`
	InstrumentID  int64     `json:"instrument_id" db:"instrument_id"`
	GuarantorName string    `json:"guarantor_name" db:"guarantor_name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Collateral is a child record describing security pledged for an instrument.
type Collateral struct {
	ID           int64     `json:"id" db:"id"`
	InstrumentID int64     `json:"instrument_id" db:"instrument_id"`
	Type         string    `json:"type" db:"type"`
	Description  string    `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PricingPoint is a child record holding an observed price/yield quote.
type PricingPoint struct {
	ID           int64     `json:"id" db:"id"`
	InstrumentID int64     `json:"instrument_id" db:"instrument_id"`
	PriceBps     int64     `json:"price_bps" db:"price_bps"`
	YieldBps     *int64    `json:"yield_bps,omitempty" db:"yield_bps"`
	ObservedAt   time.Time `json:"observed_at" db:"observed_at"`
}
