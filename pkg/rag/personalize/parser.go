package personalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// listMarker matches "-", "*", "•", "1.", "2)", "(3)" and similar prefixes.
var listMarker = regexp.MustCompile(`^(?:[-*•]+|\(?\d+[.)]|\d+\s*[-:])\s*`)

// ParseQuestions turns line-oriented model output into valid, unique questions in output order.
func ParseQuestions(raw string) []string {
	seen := make(map[string]struct{})
	var questions []string

	for _, line := range strings.Split(raw, "\n") {
		q := normalizeLine(line)
		if !IsValidQuestion(q) {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		questions = append(questions, q)
	}
	return questions
}

func normalizeLine(line string) string {
	line = strings.TrimSpace(line)
	line = listMarker.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"'`*_ ")
	return strings.TrimSpace(line)
}

// IsValidQuestion checks a single line against the output contract.
func IsValidQuestion(q string) bool {
	n := utf8.RuneCountInString(q)
	return n >= MinQuestionLength && n <= MaxQuestionLength && strings.HasSuffix(q, "?")
}

// Validate reports whether questions satisfy the whole contract for count.
func Validate(questions []string, count int) bool {
	if len(questions) != count {
		return false
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if !IsValidQuestion(q) {
			return false
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}
