package model

import "time"

// MatchMethod identifies the strategy that produced a link.
type MatchMethod string

const (
	MethodExactName      MatchMethod = "exact_name"
	MethodRateYear       MatchMethod = "rate_year"
	MethodFacilityAmount MatchMethod = "facility_amount"
	MethodSingleCA       MatchMethod = "single_ca_shortcut"
	MethodLLM            MatchMethod = "llm_assisted"
	MethodManual         MatchMethod = "manual"
)

// RelGoverns is the default relationship type between an instrument and
// the document that governs it.
const RelGoverns = "governs"

// Link records a governance relationship between one instrument and one
// document. Links are unique on (instrument, document, relationship_type);
// a second upsert of the same tuple is a no-op. Links are never updated
// in place: a correction creates a new link or flips the verification
// flag. Deleting a document deletes its links; deactivating an instrument
// leaves them as orphaned audit evidence.
type Link struct {
	ID               int64          `json:"id" db:"id"`
	InstrumentID     int64          `json:"instrument_id" db:"instrument_id"`
	DocumentID       int64          `json:"document_id" db:"document_id"`
	RelationshipType string         `json:"relationship_type" db:"relationship_type"`
	Method           MatchMethod    `json:"method" db:"method"`
	Confidence       float64        `json:"confidence" db:"confidence"`
	Evidence         map[string]any `json:"evidence,omitempty" db:"evidence"`
	IsVerified       bool           `json:"is_verified" db:"is_verified"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// ReviewThreshold is the confidence below which an unverified link is
// surfaced for human confirmation.
const ReviewThreshold = 0.7
