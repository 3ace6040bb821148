package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestHandleWritesAuditTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	auditLog := logger.NewIsolatedLogger(path)
	h := NewAuditHandler(nil, auditLog)
	ctx := context.Background()

	require.NoError(t, h.Start(ctx), "no subscriber means nothing to start")
	require.NoError(t, h.Handle(ctx, events.NewTurnPersistenceFailed("s-1", "o-1", "t-1", "db down")))
	require.NoError(t, h.Handle(ctx, events.NewRetentionSweepCompleted(map[string]interface{}{"sessions_deleted": 2})))
	require.NoError(t, h.Handle(ctx, events.NewDocumentIngested("d-1", "o-1", "ready", 3)))
	_ = auditLog.Sync()

	entries := readEntries(t, path)
	require.Len(t, entries, 3)

	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "AUDIT", entries[0]["module"])
	assert.Equal(t, "Conversation turn was not persisted", entries[0]["message"])
	details := entries[0]["details"].(map[string]interface{})
	assert.Equal(t, events.TypeTurnPersistenceFailed, details["event_type"])
	assert.Equal(t, "s-1", details["session_id"])

	assert.Equal(t, "INFO", entries[1]["level"])
	assert.Equal(t, "Retention sweep completed", entries[1]["message"])
	assert.Equal(t, "Audit event", entries[2]["message"])
}
