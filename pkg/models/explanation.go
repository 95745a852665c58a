package models

import "time"

// ExplanationRecord is the generated explanation for one page of one
// document. Uniquely keyed by (document_id, page_number); a later write for
// the same key fully replaces the earlier one.
type ExplanationRecord struct {
	DocumentID string    `db:"document_id" json:"document_id"`
	PageNumber int       `db:"page_number" json:"page_number"`
	Content    string    `db:"content"     json:"content"`
	Summary    string    `db:"summary"     json:"summary"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
