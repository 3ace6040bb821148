package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/memory"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Ingest chunks and embeds one document synchronously.
	Ingest(ctx context.Context, job *dto.IngestJob) (int, error)
}

type ChunkingOptions struct {
	ChunkSize int
	Overlap   int
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	embedder   Embedder
	catalog    *memory.DocumentCatalog
	publisher  events.Publisher
	logger     logger.ILogger
	chunking   ChunkingOptions
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embedder Embedder,
	catalog *memory.DocumentCatalog,
	publisher events.Publisher,
	log logger.ILogger,
	chunking ChunkingOptions,
) IConsumerService {
	if chunking.ChunkSize <= 0 {
		chunking.ChunkSize = 1500
	}
	if chunking.Overlap < 0 || chunking.Overlap >= chunking.ChunkSize {
		chunking.Overlap = 200
	}
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		embedder:   embedder,
		catalog:    catalog,
		publisher:  publisher,
		logger:     log,
		chunking:   chunking,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var job dto.IngestJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error(ingestionModule, "Failed to unmarshal ingestion job", map[string]interface{}{"error": err.Error()})
		msg.Ack() // a malformed job never becomes valid
		return
	}

	chunks, err := cs.Ingest(ctx, &job)
	status := entity.DocumentStatusReady
	if err != nil {
		status = entity.DocumentStatusFailed
		cs.logger.Error(ingestionModule, "Document ingestion failed", map[string]interface{}{
			"document_id": job.DocumentId.String(),
			"error":       err.Error(),
		})
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().UpdateStatus(ctx, job.DocumentId, status); err != nil {
		cs.logger.Error(ingestionModule, "Failed to update document status", map[string]interface{}{
			"document_id": job.DocumentId.String(),
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}
	if cs.catalog != nil {
		cs.catalog.Invalidate(job.DocumentId)
	}

	if cs.publisher != nil {
		evt := events.NewDocumentIngested(job.DocumentId.String(), job.OwnerId.String(), status, chunks)
		if err := cs.publisher.Publish(ctx, evt); err != nil {
			cs.logger.Warn(ingestionModule, "Failed to publish audit event", map[string]interface{}{"error": err.Error()})
		}
	}

	msg.Ack()
}

func (cs *consumerService) Ingest(ctx context.Context, job *dto.IngestJob) (int, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: job.DocumentId},
		specification.OwnedBy{OwnerID: job.OwnerId},
	)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, fmt.Errorf("document %s not found for owner %s", job.DocumentId, job.OwnerId)
	}

	cs.logger.Info(ingestionModule, "Processing document", map[string]interface{}{
		"document_id": doc.Id.String(),
		"pages":       len(job.Pages),
	})

	now := time.Now().UTC()
	var chunks []*entity.Chunk
	chunkIndex := 0

	// embed everything before opening the transaction
	for _, page := range job.Pages {
		for _, text := range utils.SplitText(page.Text, cs.chunking.ChunkSize, cs.chunking.Overlap) {
			vector, err := cs.embedder.Embed(ctx, text)
			if err != nil {
				return 0, fmt.Errorf("embed chunk %d of page %d: %w", chunkIndex, page.PageNumber, err)
			}
			chunks = append(chunks, &entity.Chunk{
				Id:         uuid.New(),
				DocumentId: doc.Id,
				OwnerId:    doc.OwnerId,
				PageNumber: page.PageNumber,
				ChunkIndex: chunkIndex,
				Content:    text,
				Embedding:  vector,
				CreatedAt:  now,
			})
			chunkIndex++
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	// re-ingesting a document replaces its chunks
	if err := uow.ChunkRepository().DeleteByDocumentId(ctx, doc.Id); err != nil {
		return 0, err
	}
	if err := uow.ChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	cs.logger.Info(ingestionModule, "Document chunks stored", map[string]interface{}{
		"document_id": doc.Id.String(),
		"chunks":      len(chunks),
	})
	return len(chunks), nil
}
