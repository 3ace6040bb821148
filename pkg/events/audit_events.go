package events

const (
	TypeRetentionSweepCompleted = "RETENTION_SWEEP_COMPLETED"
	TypeTurnPersistenceFailed   = "TURN_PERSISTENCE_FAILED"
	TypeDocumentIngested        = "DOCUMENT_INGESTED"
)

func NewRetentionSweepCompleted(data map[string]interface{}) BaseEvent {
	return New(TypeRetentionSweepCompleted, data)
}

func NewTurnPersistenceFailed(sessionId, ownerId, turnId, reason string) BaseEvent {
	return New(TypeTurnPersistenceFailed, map[string]interface{}{
		"session_id": sessionId,
		"owner_id":   ownerId,
		"turn_id":    turnId,
		"reason":     reason,
	})
}

func NewDocumentIngested(documentId, ownerId, status string, chunks int) BaseEvent {
	return New(TypeDocumentIngested, map[string]interface{}{
		"document_id": documentId,
		"owner_id":    ownerId,
		"status":      status,
		"chunks":      chunks,
	})
}
