package models

import "time"

// Document is one ingested PDF, identified by the hex SHA-256 of its raw
// bytes. Re-ingesting identical bytes resolves to the same row.
type Document struct {
	ID         string    `db:"id"          json:"document_id"`
	Filename   string    `db:"filename"    json:"filename"`
	TotalPages int       `db:"total_pages" json:"total_pages"`
	FilePath   string    `db:"file_path"   json:"-"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
