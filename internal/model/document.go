package model

import "time"

// DocumentCategory classifies a legal document section.
type DocumentCategory string

const (
	CategoryIndenture       DocumentCategory = "indenture"
	CategoryCreditAgreement DocumentCategory = "credit_agreement"
	CategoryOther           DocumentCategory = "other"
)

// Document is a section of a legal filing (an indenture, a credit
// agreement, or an exhibit of some other kind). Documents are never tied
// to a specific instrument directly; a Link records governance.
type Document struct {
	ID            int64            `json:"id" db:"id"`
	CompanyID     int64            `json:"company_id" db:"company_id"`
	Category      DocumentCategory `json:"category" db:"category"`
	Title         string           `json:"title" db:"title"`
	FilingDate    *time.Time       `json:"filing_date,omitempty" db:"filing_date"`
	Content       string           `json:"content" db:"content"`
	ContentLength int              `json:"content_length" db:"content_length"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
