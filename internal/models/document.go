// Package models defines core data structures for documents, queries, and search results.
package models

import (
	"fmt"
	"time"
)

// Document is a stored document. ID is the host id of its vector in the ANN backend.
type Document struct {
	ID        int64                  `json:"id" db:"id"`
	UID       string                 `json:"uid" db:"uid"`
	Text      string                 `json:"text" db:"text"`
	Tags      string                 `json:"tags,omitempty" db:"tags"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for indexing or upserting a document.
// An empty UID is replaced with a generated one.
type DocumentInput struct {
	UID      string                 `json:"uid,omitempty"`
	Text     string                 `json:"text"`
	Tags     string                 `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate returns an error if the input has no text.
func (d *DocumentInput) Validate() error {
	if d.Text == "" {
		return fmt.Errorf("document text cannot be empty")
	}
	return nil
}
