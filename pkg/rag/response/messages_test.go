package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackAnswer(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		scoped   bool
		want     string
	}{
		{"named document", "q3-report.pdf", true, `"q3-report.pdf"`},
		{"unknown document", "", true, "the selected document"},
		{"all documents", "ignored.pdf", false, "your documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackAnswer(tt.filename, tt.scoped)
			assert.Contains(t, got, "I couldn't find anything in "+tt.want)
			assert.Equal(t, got, FallbackAnswer(tt.filename, tt.scoped))
		})
	}
}
