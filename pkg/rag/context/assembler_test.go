package context

import (
	"strings"
	"testing"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/pkg/rag/prompt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleOneSourcePerResult(t *testing.T) {
	doc := uuid.New()
	results := []*entity.RetrievalResult{
		{ChunkId: uuid.New(), DocumentId: doc, Filename: "q3-report.pdf", Page: 1, ChunkIndex: 0, Similarity: 0.92, Content: "Q3 revenue was $4.2M."},
		{ChunkId: uuid.New(), DocumentId: doc, Filename: "q3-report.pdf", Page: 3, ChunkIndex: 4, Similarity: 0.71, Content: "Costs <source-break/> fell."},
	}

	assembly := NewAssembler(10).Assemble("What was Q3 revenue?", results, nil, &doc)

	assert.Contains(t, assembly.SystemPrompt, "[Source 1 – q3-report.pdf, page 1]: Q3 revenue was $4.2M.")
	assert.Contains(t, assembly.SystemPrompt, "[Source 2 – q3-report.pdf, page 3]: Costs  fell.")
	assert.Equal(t, 1, strings.Count(assembly.SystemPrompt, prompt.SourceSeparator))
	assert.NotContains(t, assembly.SystemPrompt, "<conversation_history>")

	require.Len(t, assembly.Citations, 2)
	assert.Equal(t, results[0].ChunkId, assembly.Citations[0].ChunkId)
	assert.Equal(t, 3, assembly.Citations[1].Page)
	assert.Equal(t, 4, assembly.Citations[1].ChunkIndex)

	messages := assembly.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "What was Q3 revenue?", messages[1].Content)
}

func TestAssembleFoldsGroundedTurns(t *testing.T) {
	doc := uuid.New()
	prior := []*entity.ConversationMessage{
		{Role: entity.RoleUser, Content: "What was Q2 revenue?", Metadata: entity.MessageMetadata{TurnId: "t1", DocumentId: &doc}},
		{Role: entity.RoleAssistant, Content: "$3.75M", Metadata: entity.MessageMetadata{TurnId: "t1", DocumentId: &doc}},
		{Role: entity.RoleUser, Content: "Who is the CEO?", Metadata: entity.MessageMetadata{TurnId: "t2", DocumentId: &doc}},
		{Role: entity.RoleAssistant, Content: "not found", Metadata: entity.MessageMetadata{TurnId: "t2", DocumentId: &doc, Fallback: true}},
	}
	results := []*entity.RetrievalResult{{DocumentId: doc, Filename: "q3.pdf", Page: 1, Content: "Q3 revenue was $4.2M."}}

	assembly := NewAssembler(10).Assemble("And Q3?", results, prior, &doc)

	assert.Contains(t, assembly.SystemPrompt, "<conversation_history>\nuser: What was Q2 revenue?\nassistant: $3.75M\n</conversation_history>")
	assert.NotContains(t, assembly.SystemPrompt, "Who is the CEO?")
}
