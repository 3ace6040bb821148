package dto

import (
	"time"

	"github.com/google/uuid"
)

type PageDTO struct {
	PageNumber int    `json:"page_number" validate:"min=1"`
	Text       string `json:"text" validate:"required"`
}

type IngestDocumentRequest struct {
	Filename string    `json:"filename" validate:"required,max=255"`
	Pages    []PageDTO `json:"pages" validate:"required,min=1,max=2000,dive"`
}

type DocumentResponse struct {
	Id        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestJob is the payload published on the ingestion topic.
type IngestJob struct {
	DocumentId uuid.UUID `json:"document_id"`
	OwnerId    uuid.UUID `json:"owner_id"`
	Pages      []PageDTO `json:"pages"`
}
