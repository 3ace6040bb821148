package prompt

import (
	"strings"

	"coaching-rag-be/pkg/llm"
)

// GroundedBuilder builds the system prompt for an answer grounded in retrieved sources.
type GroundedBuilder struct {
	sources []string
	history []llm.Message
}

// NewGroundedBuilder takes already formatted source blocks and the filtered prior turns.
func NewGroundedBuilder(sources []string, history []llm.Message) *GroundedBuilder {
	return &GroundedBuilder{
		sources: sources,
		history: history,
	}
}

// Build joins the sources with SourceSeparator. The question itself travels as the user message.
func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeReferenceMaterial(&prompt)
	b.writeHistory(&prompt)
	b.writeGuidelines(&prompt)

	return strings.TrimRight(prompt.String(), "\n")
}

func (b *GroundedBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a coaching assistant answering questions about documents the user uploaded.\n")
	prompt.WriteString("Answer only from the reference material below.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *GroundedBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	prompt.WriteString("<reference_material>\n")
	prompt.WriteString(strings.Join(b.sources, SourceSeparator))
	prompt.WriteString("\n</reference_material>\n\n")
}

func (b *GroundedBuilder) writeHistory(prompt *strings.Builder) {
	if len(b.history) == 0 {
		return
	}

	prompt.WriteString("<conversation_history>\n")
	for _, msg := range b.history {
		prompt.WriteString(msg.Role)
		prompt.WriteString(": ")
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</conversation_history>\n\n")
}

func (b *GroundedBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Base your answer strictly on the reference material provided\n")
	prompt.WriteString("2. Cite the sources you used as [Source n]\n")
	prompt.WriteString("3. Use the conversation history only to understand follow-up questions, never as a source of facts\n")
	prompt.WriteString("4. If the material doesn't contain what's being asked, say so honestly\n")
	prompt.WriteString("5. Keep the answer concise and quote figures exactly as written\n")
	prompt.WriteString("</guidelines>\n")
}
