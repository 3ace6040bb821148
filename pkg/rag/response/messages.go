package response

import (
	"fmt"
)

const (
	unknownDocumentLabel = "the selected document"
	allDocumentsLabel    = "your documents"
)

// FallbackAnswer is the deterministic reply for a question nothing in scope could ground.
// filename is empty when the document is unknown; scoped is false when every document was searched.
func FallbackAnswer(filename string, scoped bool) string {
	label := allDocumentsLabel
	if scoped {
		label = unknownDocumentLabel
		if filename != "" {
			label = fmt.Sprintf("\"%s\"", filename)
		}
	}

	return fmt.Sprintf(
		"I couldn't find anything in %s that answers this question. "+
			"Try rephrasing it with words that appear in the document, "+
			"or re-upload the document if it was updated or didn't finish processing.",
		label,
	)
}
