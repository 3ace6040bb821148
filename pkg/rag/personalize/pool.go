package personalize

import (
	"fmt"
	"os"
	"strings"

	"coaching-rag-be/internal/apperr"

	"gopkg.in/yaml.v3"
)

// MaxCount is the largest number of prompts one request may ask for. Every pool must
// hold at least this many questions so padding can always reach the requested count.
const MaxCount = 20

// DefaultPool is the canonical question set used for padding and for users without a profile.
var DefaultPool = []string{
	"How can I give clearer feedback to my team?",
	"What should I focus on in my first 90 days?",
	"How do I prioritise when everything feels urgent?",
	"How can I run more effective one-on-ones?",
	"What habits would make me a better listener?",
	"How do I handle a difficult conversation calmly?",
	"How can I delegate without losing quality?",
	"What is one way to build trust with my manager?",
	"How do I stay focused during a busy week?",
	"How can I make better decisions under pressure?",
	"What can I do to grow my influence at work?",
	"How do I set goals that actually motivate me?",
	"How can I recover after a stressful day?",
	"What should I ask in my next career conversation?",
	"How do I say no without damaging relationships?",
	"How can I make meetings shorter and more useful?",
	"What strengths should I lean on more often?",
	"How do I coach someone who is struggling?",
	"How can I communicate change to my team?",
	"What is a good way to reflect on my week?",
	"How do I build confidence when presenting?",
	"How can I balance strategy with daily tasks?",
}

type poolFile struct {
	Questions []string `yaml:"questions"`
}

// LoadPool reads a YAML file of the form `questions: [...]`. Every entry must satisfy the output contract.
func LoadPool(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback pool: %w", err)
	}

	var file poolFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse fallback pool: %w", err)
	}

	pool := ParseQuestions(strings.Join(file.Questions, "\n"))
	if len(pool) != len(file.Questions) {
		return nil, fmt.Errorf("fallback pool %s has invalid or duplicate questions", path)
	}
	if len(pool) < MaxCount {
		return nil, fmt.Errorf("fallback pool %s has %d questions, need at least %d", path, len(pool), MaxCount)
	}
	return pool, nil
}

// Pad keeps the first count questions and tops up from pool, skipping questions already present.
func Pad(questions []string, pool []string, count int) ([]string, error) {
	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	add := func(q string) {
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup || !IsValidQuestion(q) {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	for _, q := range questions {
		if len(out) == count {
			break
		}
		add(q)
	}
	for _, q := range pool {
		if len(out) == count {
			break
		}
		add(q)
	}

	if len(out) < count {
		return nil, &apperr.PersonalizationValidationError{
			Want:   count,
			Got:    len(out),
			Reason: "fallback pool exhausted",
		}
	}
	return out, nil
}
