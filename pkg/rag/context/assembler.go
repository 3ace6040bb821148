package context

import (
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/pkg/llm"
	"coaching-rag-be/pkg/rag/history"
	"coaching-rag-be/pkg/rag/prompt"

	"github.com/google/uuid"
)

// Assembly is what the completion call is built from.
type Assembly struct {
	SystemPrompt string
	// Citations lists every result offered to the model, in prompt order.
	Citations []entity.Citation

	question string
}

// Messages returns the chat sent to the completion client.
func (a *Assembly) Messages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: a.SystemPrompt},
		{Role: "user", Content: a.question},
	}
}

type Assembler struct {
	historyWindow int
}

func NewAssembler(historyWindow int) *Assembler {
	return &Assembler{historyWindow: historyWindow}
}

// Assemble builds one source block per result. priorTurns may be nil; when present
// only grounded turns of the same documentId scope are folded in.
func (a *Assembler) Assemble(question string, results []*entity.RetrievalResult, priorTurns []*entity.ConversationMessage, documentId *uuid.UUID) *Assembly {
	sources := make([]string, 0, len(results))
	citations := make([]entity.Citation, 0, len(results))

	for i, r := range results {
		sources = append(sources, prompt.FormatSource(i+1, r.Filename, r.Page, r.Content))
		citations = append(citations, entity.Citation{
			ChunkId:    r.ChunkId,
			DocumentId: r.DocumentId,
			Filename:   r.Filename,
			Page:       r.Page,
			ChunkIndex: r.ChunkIndex,
			Similarity: r.Similarity,
		})
	}

	var turns []llm.Message
	if len(priorTurns) > 0 {
		turns = history.FilterGrounded(priorTurns, documentId, a.historyWindow)
	}

	return &Assembly{
		SystemPrompt: prompt.NewGroundedBuilder(sources, turns).Build(),
		Citations:    citations,
		question:     question,
	}
}
