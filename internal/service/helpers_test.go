package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/database"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var nopLogger = logger.NewNopLogger()

func newTestStore(t *testing.T) (*gorm.DB, unitofwork.RepositoryFactory) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()
	db, err := database.NewInMemorySQLite(name)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db, 768))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db, unitofwork.NewRepositoryFactory(db)
}

func seedDocument(t *testing.T, factory unitofwork.RepositoryFactory, ownerId uuid.UUID, filename string) *entity.Document {
	t.Helper()
	doc := &entity.Document{
		Id:        uuid.New(),
		OwnerId:   ownerId,
		Filename:  filename,
		Status:    entity.DocumentStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, factory.NewUnitOfWork(context.Background()).DocumentRepository().Create(context.Background(), doc))
	return doc
}

func seedChunks(t *testing.T, factory unitofwork.RepositoryFactory, chunks ...*entity.Chunk) {
	t.Helper()
	require.NoError(t, factory.NewUnitOfWork(context.Background()).ChunkRepository().CreateBulk(context.Background(), chunks))
}

func seedSession(t *testing.T, factory unitofwork.RepositoryFactory, ownerId uuid.UUID, lastMessageAt time.Time) *entity.ConversationSession {
	t.Helper()
	session := &entity.ConversationSession{
		Id:            uuid.New(),
		OwnerId:       ownerId,
		Title:         entity.DefaultSessionTitle,
		CreatedAt:     lastMessageAt,
		LastMessageAt: lastMessageAt,
		IsActive:      true,
	}
	require.NoError(t, factory.NewUnitOfWork(context.Background()).ConversationSessionRepository().Create(context.Background(), session))
	return session
}

// fakeEmbedder maps exact texts to vectors and falls back to def.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.def, nil
}

type fakeCompleter struct {
	mu       sync.Mutex
	text     string
	tokens   int
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ ...llm.Option) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.text, TokensUsed: f.tokens}, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType())
	}
	return out
}

type logEntry struct {
	level   string
	module  string
	message string
	details map[string]interface{}
}

// recordingLogger keeps every entry so tests can assert on security events.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, module, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, module: module, message: message, details: details})
}

func (l *recordingLogger) Debug(module, message string, details map[string]interface{}) {
	l.record("debug", module, message, details)
}

func (l *recordingLogger) Info(module, message string, details map[string]interface{}) {
	l.record("info", module, message, details)
}

func (l *recordingLogger) Warn(module, message string, details map[string]interface{}) {
	l.record("warn", module, message, details)
}

func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.record("error", module, message, details)
}

func (l *recordingLogger) Sync() error { return nil }

func (l *recordingLogger) securityEvents() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == "warn" && e.details["security_event"] == true {
			out = append(out, e)
		}
	}
	return out
}
