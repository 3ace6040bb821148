package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []string
	}{
		{name: "blank", text: "  \n ", chunkSize: 10, overlap: 2, want: nil},
		{name: "fits in one chunk", text: " short ", chunkSize: 10, overlap: 2, want: []string{"short"}},
		{name: "overlapping windows", text: "abcdefghijklmnop", chunkSize: 6, overlap: 2, want: []string{"abcdef", "efghij", "ijklmn", "mnop"}},
		{name: "overlap not smaller than size", text: "abcdefgh", chunkSize: 4, overlap: 4, want: []string{"abcd", "efgh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.chunkSize, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitTextCountsRunes(t *testing.T) {
	text := strings.Repeat("ü", 25)
	for _, chunk := range SplitText(text, 10, 0) {
		if n := utf8.RuneCountInString(chunk); n > 10 {
			t.Errorf("chunk has %d runes", n)
		}
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %q is not valid UTF-8", chunk)
		}
	}
}
