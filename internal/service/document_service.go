package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const ingestionModule = "INGESTION"

type IDocumentService interface {
	Ingest(ctx context.Context, ownerId uuid.UUID, request *dto.IngestDocumentRequest) (*dto.DocumentResponse, error)
	Get(ctx context.Context, ownerId, documentId uuid.UUID) (*dto.DocumentResponse, error)
	List(ctx context.Context, ownerId uuid.UUID) ([]*dto.DocumentResponse, error)
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory, publisherService IPublisherService, log logger.ILogger) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		logger:           log,
	}
}

// Ingest registers the document as processing and queues chunking and embedding.
func (s *documentService) Ingest(ctx context.Context, ownerId uuid.UUID, request *dto.IngestDocumentRequest) (*dto.DocumentResponse, error) {
	filename := strings.TrimSpace(request.Filename)
	if filename == "" {
		return nil, apperr.InvalidRequest("filename is required")
	}
	if len(request.Pages) == 0 {
		return nil, apperr.InvalidRequest("document has no pages")
	}

	doc := &entity.Document{
		Id:        uuid.New(),
		OwnerId:   ownerId,
		Filename:  filename,
		Status:    entity.DocumentStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(dto.IngestJob{
		DocumentId: doc.Id,
		OwnerId:    ownerId,
		Pages:      request.Pages,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Error(ingestionModule, "Failed to queue ingestion job", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
		if statusErr := uow.DocumentRepository().UpdateStatus(ctx, doc.Id, entity.DocumentStatusFailed); statusErr != nil {
			s.logger.Warn(ingestionModule, "Failed to mark document failed", map[string]interface{}{"error": statusErr.Error()})
		}
		return nil, err
	}

	s.logger.Info(ingestionModule, "Document queued for ingestion", map[string]interface{}{
		"document_id": doc.Id.String(),
		"owner_id":    ownerId.String(),
		"pages":       len(request.Pages),
	})
	return toDocumentResponse(doc), nil
}

func (s *documentService) Get(ctx context.Context, ownerId, documentId uuid.UUID) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("document not found")
	}
	if doc.OwnerId != ownerId {
		s.logger.Warn(ingestionModule, "Cross-owner document access rejected", map[string]interface{}{
			"security_event": true,
			"document_id":    documentId.String(),
			"caller_id":      ownerId.String(),
		})
		return nil, apperr.Forbidden("document belongs to another user")
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) List(ctx context.Context, ownerId uuid.UUID) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		response = append(response, toDocumentResponse(doc))
	}
	return response, nil
}

func toDocumentResponse(doc *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:        doc.Id,
		Filename:  doc.Filename,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
	}
}
