package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dimension = 768

// axis returns a unit vector along dimension i.
func axis(i int) []float32 {
	v := make([]float32, dimension)
	v[i] = 1
	return v
}

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gormDB, dimension))

	var typmod int
	require.NoError(t, gormDB.Raw(
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`,
	).Scan(&typmod).Error)
	assert.Equal(t, dimension, typmod)

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(ctx)

	sqlDB, _ := gormDB.DB()
	assert.NoError(t, sqlDB.Ping())
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	ownerId := uuid.New()
	doc := &entity.Document{
		Id:        uuid.New(),
		OwnerId:   ownerId,
		Filename:  "integration-" + uuid.NewString() + ".pdf",
		Status:    entity.DocumentStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, uow.DocumentRepository().Create(ctx, doc))
	t.Cleanup(func() {
		_ = uow.ChunkRepository().DeleteByDocumentId(ctx, doc.Id)
		gormDB.Delete(&model.Document{}, "id = ?", doc.Id)
	})

	t.Run("pgvector search ranks the matching chunk first", func(t *testing.T) {
		chunks := []*entity.Chunk{
			{DocumentId: doc.Id, OwnerId: ownerId, PageNumber: 1, ChunkIndex: 0, Content: "first", Embedding: axis(0)},
			{DocumentId: doc.Id, OwnerId: ownerId, PageNumber: 2, ChunkIndex: 1, Content: "second", Embedding: axis(1)},
		}
		require.NoError(t, uow.ChunkRepository().CreateBulk(ctx, chunks))

		results, err := uow.ChunkRepository().SearchSimilar(ctx, contract.ChunkSearchQuery{
			OwnerId:    ownerId,
			DocumentId: &doc.Id,
			Embedding:  axis(1),
			Limit:      5,
			Threshold:  0.3,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "second", results[0].Chunk.Content)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	})

	t.Run("search never crosses owners", func(t *testing.T) {
		results, err := uow.ChunkRepository().SearchSimilar(ctx, contract.ChunkSearchQuery{
			OwnerId:   uuid.New(),
			Embedding: axis(1),
			Limit:     5,
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("duplicate append converges inside a transaction", func(t *testing.T) {
		now := time.Now().UTC()
		session := &entity.ConversationSession{
			Id: uuid.New(), OwnerId: ownerId, Title: entity.DefaultSessionTitle,
			CreatedAt: now, LastMessageAt: now, IsActive: true,
		}
		require.NoError(t, uow.ConversationSessionRepository().Create(ctx, session))
		t.Cleanup(func() {
			_, _ = uow.ConversationMessageRepository().DeleteBySessionId(ctx, session.Id)
			_ = uow.ConversationSessionRepository().Delete(ctx, session.Id)
		})

		tx := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, tx.Begin(ctx))
		defer tx.Rollback()

		msg := func(content string) *entity.ConversationMessage {
			return &entity.ConversationMessage{
				Id: uuid.New(), SessionId: session.Id, OwnerId: ownerId, Role: entity.RoleUser,
				Content: content, ClientId: "integration-client", CreatedAt: now,
				Metadata: entity.MessageMetadata{Citations: []entity.Citation{}},
			}
		}

		first, created, err := tx.ConversationMessageRepository().Append(ctx, msg("original"))
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := tx.ConversationMessageRepository().Append(ctx, msg("retry"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.Id, second.Id)
		assert.Equal(t, "original", second.Content)

		require.NoError(t, tx.Commit())
	})
}
