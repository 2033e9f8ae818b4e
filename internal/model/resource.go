// Package model provides data models for the legal-rag service.
package model

import (
	"time"
)

// ResourceType distinguishes uploaded documents from FAQ sheets.
type ResourceType string

const (
	// ResourceTypeDocument is a PDF or Word upload split into text chunks.
	ResourceTypeDocument ResourceType = "document"
	// ResourceTypeFAQ is a CSV/XLS/XLSX upload where each row is one record.
	ResourceTypeFAQ ResourceType = "faq"
)

// Resource represents an uploaded file registered with the service.
type Resource struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       ResourceType `json:"type"`
	UploadDate time.Time    `json:"upload_date"`
	Size       int64        `json:"size"`
}

// Chunk is one unit of text handed to the vector store.
type Chunk struct {
	Text       string       `json:"text"`
	Source     string       `json:"source,omitempty"`
	ResourceID string       `json:"resource_id,omitempty"`
	FileType   string       `json:"file_type,omitempty"`
	Index      int          `json:"chunk_id"`
	Type       ResourceType `json:"type"`

	// FAQ records only.
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	RowID    string `json:"row_id,omitempty"`
}
