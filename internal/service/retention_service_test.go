package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/lock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fakeMailer struct {
	mu      sync.Mutex
	reports []*dto.CleanupResponse
}

func (f *fakeMailer) SendRetentionReport(report *dto.CleanupResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

var testRetentionConfig = config.RetentionConfig{
	DaysOld:       30,
	BatchSize:     100,
	MaxBatches:    10,
	LockTTL:       time.Minute,
	PreviewWindow: 30,
}

type retentionFixture struct {
	db        *gorm.DB
	factory   unitofwork.RepositoryFactory
	owner     uuid.UUID
	doc       *entity.Document
	publisher *fakePublisher
	mailer    *fakeMailer
	locker    *lock.LocalLocker
	service   IRetentionService
}

func newRetentionFixture(t *testing.T, cfg config.RetentionConfig) *retentionFixture {
	t.Helper()
	db, factory := newTestStore(t)
	owner := uuid.New()
	doc := seedDocument(t, factory, owner, "kept.pdf")
	seedChunks(t, factory, &entity.Chunk{DocumentId: doc.Id, OwnerId: owner, PageNumber: 1, Content: "kept", Embedding: []float32{1, 0}})

	f := &retentionFixture{
		db:        db,
		factory:   factory,
		owner:     owner,
		doc:       doc,
		publisher: &fakePublisher{},
		mailer:    &fakeMailer{},
		locker:    lock.NewLocalLocker(),
	}
	f.service = NewRetentionService(factory, f.locker, f.publisher, f.mailer, nopLogger, cfg)
	return f
}

// seedAged creates a session idle for the given number of days with one
// question, one answer and one citation ref.
func (f *retentionFixture) seedAged(t *testing.T, days int) *entity.ConversationSession {
	t.Helper()
	ctx := context.Background()
	at := time.Now().UTC().AddDate(0, 0, -days)
	session := seedSession(t, f.factory, f.owner, at)

	uow := f.factory.NewUnitOfWork(ctx)
	for _, role := range []entity.MessageRole{entity.RoleUser, entity.RoleAssistant} {
		_, _, err := uow.ConversationMessageRepository().Append(ctx, &entity.ConversationMessage{
			Id:        uuid.New(),
			SessionId: session.Id,
			OwnerId:   f.owner,
			Role:      role,
			Content:   string(role),
			Metadata:  entity.MessageMetadata{Citations: []entity.Citation{}},
			ClientId:  uuid.NewString(),
			CreatedAt: at,
		})
		require.NoError(t, err)
	}
	require.NoError(t, uow.ConversationCitationRepository().CreateBulk(ctx, []*entity.ConversationCitation{{
		MessageId:  uuid.New(),
		SessionId:  session.Id,
		OwnerId:    f.owner,
		ChunkId:    uuid.New(),
		DocumentId: f.doc.Id,
		PageNumber: 1,
	}}))
	return session
}

func (f *retentionFixture) sessionCount(t *testing.T) int64 {
	t.Helper()
	count, err := f.factory.NewUnitOfWork(context.Background()).ConversationSessionRepository().Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestCleanupDeletesExpiredSessions(t *testing.T) {
	f := newRetentionFixture(t, testRetentionConfig)
	ctx := context.Background()
	recent := f.seedAged(t, 10)
	f.seedAged(t, 40)
	f.seedAged(t, 400)

	res, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ScheduledSessionsFound)
	assert.Equal(t, 2, res.Result.SessionsDeleted)
	assert.Equal(t, 4, res.Result.MessagesDeleted)
	assert.Equal(t, 2, res.Result.ChunkRefsDeleted)
	assert.Equal(t, 1, res.Result.BatchesRun)
	assert.Empty(t, res.Result.Failed)
	assert.Equal(t, 30, res.Options.DaysOld)
	assert.Equal(t, 100, res.Options.BatchSize)

	assert.Equal(t, int64(1), f.sessionCount(t))
	uow := f.factory.NewUnitOfWork(ctx)
	survivor, err := uow.ConversationSessionRepository().FindOne(ctx, specification.ByID{ID: recent.Id})
	require.NoError(t, err)
	assert.NotNil(t, survivor)

	chunks, err := uow.ChunkRepository().Count(ctx, specification.ByDocumentID{DocumentID: f.doc.Id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), chunks, "source chunks are never swept")

	assert.Contains(t, f.publisher.types(), events.TypeRetentionSweepCompleted)
	assert.Len(t, f.mailer.reports, 1)

	again, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30})
	require.NoError(t, err)
	assert.Equal(t, 0, again.ScheduledSessionsFound)
	assert.Equal(t, 0, again.Result.SessionsDeleted)
	assert.Equal(t, int64(1), f.sessionCount(t))
}

// failMessageDelete makes deleting the messages of sessionId fail until the returned func is called.
func (f *retentionFixture) failMessageDelete(t *testing.T, sessionId uuid.UUID) func() {
	t.Helper()
	name := "test:fail_message_delete"
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != "conversation_messages" {
			return
		}
		where, ok := tx.Statement.Clauses["WHERE"].Expression.(clause.Where)
		if !ok {
			return
		}
		for _, expr := range where.Exprs {
			e, ok := expr.(clause.Expr)
			if !ok {
				continue
			}
			for _, v := range e.Vars {
				if id, ok := v.(uuid.UUID); ok && id == sessionId {
					_ = tx.AddError(errors.New("messages table is locked"))
					return
				}
			}
		}
	}))
	return func() {
		require.NoError(t, f.db.Callback().Delete().Remove(name))
	}
}

func TestCleanupSkipsSessionThatFailsToDelete(t *testing.T) {
	f := newRetentionFixture(t, testRetentionConfig)
	ctx := context.Background()
	f.seedAged(t, 10)
	deletable := f.seedAged(t, 40)
	stuck := f.seedAged(t, 400)
	restore := f.failMessageDelete(t, stuck.Id)

	res, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30, BatchSize: 1})
	var jobErr *apperr.RetentionJobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, 2, jobErr.Selected)
	assert.Equal(t, 1, jobErr.Succeeded)
	assert.Equal(t, 1, jobErr.Failed)

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Result.SessionsDeleted)
	assert.Equal(t, 2, res.Result.MessagesDeleted)
	assert.Equal(t, 2, res.Result.BatchesRun)
	require.Len(t, res.Result.Failed, 1)
	assert.Equal(t, stuck.Id, res.Result.Failed[0].SessionId)
	assert.Contains(t, res.Result.Failed[0].Error, "messages table is locked")

	uow := f.factory.NewUnitOfWork(ctx)
	gone, err := uow.ConversationSessionRepository().FindOne(ctx, specification.ByID{ID: deletable.Id})
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := uow.ConversationMessageRepository().Count(ctx, specification.BySessionID{SessionID: stuck.Id})
	require.NoError(t, err)
	assert.Equal(t, int64(2), kept, "a failed delete rolls back")

	// the next run retries the stuck session once and stops
	again, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30, BatchSize: 1})
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, 0, jobErr.Succeeded)
	assert.Equal(t, 1, jobErr.Failed)
	assert.Equal(t, 1, again.Result.BatchesRun)
	assert.Equal(t, 1, again.Result.SessionsSelected)

	restore()
	final, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30, BatchSize: 1})
	require.NoError(t, err)
	assert.True(t, final.Success)
	assert.Equal(t, 1, final.Result.SessionsDeleted)
	assert.Equal(t, int64(1), f.sessionCount(t))
}

func TestCleanupDryRunIsReadOnly(t *testing.T) {
	f := newRetentionFixture(t, testRetentionConfig)
	ctx := context.Background()
	f.seedAged(t, 10)
	f.seedAged(t, 40)
	f.seedAged(t, 400)

	for i := 0; i < 2; i++ {
		res, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30, DryRun: true})
		require.NoError(t, err)
		assert.True(t, res.Options.DryRun)
		assert.Equal(t, 2, res.ScheduledSessionsFound)
		assert.Equal(t, 2, res.Result.SessionsSelected)
		assert.Zero(t, res.Result.SessionsDeleted)
		assert.Zero(t, res.Result.BatchesRun)
	}

	assert.Equal(t, int64(3), f.sessionCount(t))
	assert.Empty(t, f.mailer.reports, "dry runs are not mailed")
}

func TestCleanupDryRunCapsSelectionAtBatchLimit(t *testing.T) {
	cfg := testRetentionConfig
	cfg.MaxBatches = 1
	f := newRetentionFixture(t, cfg)
	for i := 0; i < 3; i++ {
		f.seedAged(t, 60+i)
	}

	res, err := f.service.Cleanup(context.Background(), &dto.CleanupRequest{DaysOld: 30, BatchSize: 2, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ScheduledSessionsFound)
	assert.Equal(t, 2, res.Result.SessionsSelected)
}

func TestCleanupRunsSeveralBatches(t *testing.T) {
	f := newRetentionFixture(t, testRetentionConfig)
	f.seedAged(t, 10)
	f.seedAged(t, 40)
	f.seedAged(t, 400)

	res, err := f.service.Cleanup(context.Background(), &dto.CleanupRequest{DaysOld: 30, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Result.SessionsDeleted)
	assert.Equal(t, 2, res.Result.BatchesRun)
	assert.Equal(t, 2, res.Result.SessionsSelected)
	assert.Equal(t, int64(1), f.sessionCount(t))
}

func TestCleanupStopsAtMaxBatches(t *testing.T) {
	cfg := testRetentionConfig
	cfg.MaxBatches = 1
	f := newRetentionFixture(t, cfg)
	f.seedAged(t, 40)
	f.seedAged(t, 400)

	res, err := f.service.Cleanup(context.Background(), &dto.CleanupRequest{DaysOld: 30, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ScheduledSessionsFound)
	assert.Equal(t, 1, res.Result.SessionsDeleted)
	assert.Equal(t, int64(1), f.sessionCount(t))
}

func TestCleanupUsesConfiguredDefaults(t *testing.T) {
	cfg := testRetentionConfig
	cfg.DaysOld = 365
	f := newRetentionFixture(t, cfg)
	f.seedAged(t, 40)
	f.seedAged(t, 400)

	res, err := f.service.Cleanup(context.Background(), &dto.CleanupRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 365, res.Options.DaysOld)
	assert.Equal(t, 1, res.ScheduledSessionsFound)
}

func TestCleanupVerbosePreview(t *testing.T) {
	cfg := testRetentionConfig
	cfg.PreviewWindow = 7
	f := newRetentionFixture(t, cfg)
	expired := f.seedAged(t, 400)
	upcoming := f.seedAged(t, 25)
	f.seedAged(t, 1)

	res, err := f.service.Cleanup(context.Background(), &dto.CleanupRequest{DaysOld: 30, DryRun: true, Verbose: true})
	require.NoError(t, err)

	require.Len(t, res.Result.ScheduledPreview, 2)
	assert.Equal(t, expired.Id, res.Result.ScheduledPreview[0].SessionId)
	assert.Equal(t, 0, res.Result.ScheduledPreview[0].DaysUntilDeletion)
	assert.Equal(t, upcoming.Id, res.Result.ScheduledPreview[1].SessionId)
	assert.Equal(t, 5, res.Result.ScheduledPreview[1].DaysUntilDeletion)
	assert.Equal(t, entity.DefaultSessionTitle, res.Result.ScheduledPreview[1].Title)
}

func TestCleanupConflictsWhileLockIsHeld(t *testing.T) {
	f := newRetentionFixture(t, testRetentionConfig)
	ctx := context.Background()
	f.seedAged(t, 400)

	release, err := f.locker.Acquire(ctx, retentionLockKey, time.Minute)
	require.NoError(t, err)

	_, err = f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, int64(1), f.sessionCount(t))

	dry, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30, DryRun: true})
	require.NoError(t, err, "dry runs do not take the lock")
	assert.Equal(t, 1, dry.ScheduledSessionsFound)

	require.NoError(t, release(ctx))
	res, err := f.service.Cleanup(ctx, &dto.CleanupRequest{DaysOld: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Result.SessionsDeleted)
}

type stubRetention struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubRetention) Cleanup(context.Context, *dto.CleanupRequest) (*dto.CleanupResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &dto.CleanupResponse{}, s.err
}

func (s *stubRetention) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRetentionSchedulerRunsUntilStopped(t *testing.T) {
	stub := &stubRetention{err: apperr.Conflict("busy")}
	scheduler := NewRetentionScheduler(stub, 10*time.Millisecond, nopLogger)

	scheduler.Start(context.Background())
	require.Eventually(t, func() bool { return stub.count() >= 2 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()

	stopped := stub.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, stub.count())
	scheduler.Stop()
}

func TestRetentionSchedulerDisabledWithoutInterval(t *testing.T) {
	stub := &stubRetention{err: errors.New("unused")}
	scheduler := NewRetentionScheduler(stub, 0, nopLogger)

	scheduler.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()
	assert.Zero(t, stub.count())
}
