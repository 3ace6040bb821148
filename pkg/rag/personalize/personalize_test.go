package personalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "numbered list",
			raw:  "1. How do I give better feedback?\n2) What should I delegate first?",
			want: []string{"How do I give better feedback?", "What should I delegate first?"},
		},
		{
			name: "bullets and quotes",
			raw:  "- \"How can I lead calmer meetings?\"\n* **What drains my energy most?**\n• How do I say no kindly?",
			want: []string{"How can I lead calmer meetings?", "What drains my energy most?", "How do I say no kindly?"},
		},
		{
			name: "drops preamble and statements",
			raw:  "Sure! Here are your questions:\n\nHow do I build trust quickly?\nThis is not a question.",
			want: []string{"How do I build trust quickly?"},
		},
		{
			name: "drops case-insensitive duplicates",
			raw:  "How do I build trust quickly?\nhow do I build trust quickly?",
			want: []string{"How do I build trust quickly?"},
		},
		{
			name: "drops too short and too long",
			raw:  "Why?\n" + strings.Repeat("x", 70) + "?",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuestions(tt.raw))
		})
	}
}

func TestValidate(t *testing.T) {
	ok := []string{"How do I give better feedback?", "What should I delegate first?"}
	assert.True(t, Validate(ok, 2))
	assert.False(t, Validate(ok, 3))
	assert.False(t, Validate([]string{ok[0], ok[0]}, 2))
	assert.False(t, Validate([]string{ok[0], "Not a question"}, 2))
}

func TestDefaultPoolSatisfiesContract(t *testing.T) {
	assert.GreaterOrEqual(t, len(DefaultPool), MaxCount)
	assert.True(t, Validate(DefaultPool, len(DefaultPool)))
}

func TestPad(t *testing.T) {
	pool := []string{"How do I plan my week better?", "How can I focus for longer?", "What should I learn next?"}

	got, err := Pad([]string{"How can I focus for longer?"}, pool, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"How can I focus for longer?", "How do I plan my week better?", "What should I learn next?"}, got)

	got, err = Pad([]string{"A first valid question?", "A second valid question?", "A third valid question?"}, pool, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A first valid question?", "A second valid question?"}, got)

	_, err = Pad(nil, pool, 4)
	var pErr *apperr.PersonalizationValidationError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 4, pErr.Want)
	assert.Equal(t, 3, pErr.Got)
}

func writePool(t *testing.T, path string, questions []string) {
	t.Helper()
	raw, err := yaml.Marshal(poolFile{Questions: questions})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
}

func TestLoadPool(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "pool.yaml")
	writePool(t, valid, DefaultPool[:MaxCount])
	pool, err := LoadPool(valid)
	require.NoError(t, err)
	assert.Equal(t, DefaultPool[:MaxCount], pool)

	// a short pool could not pad the largest allowed request
	short := filepath.Join(dir, "short.yaml")
	writePool(t, short, DefaultPool[:MaxCount-1])
	_, err = LoadPool(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 20")

	invalid := filepath.Join(dir, "invalid.yaml")
	writePool(t, invalid, append([]string{"Plan my week"}, DefaultPool[:MaxCount]...))
	_, err = LoadPool(invalid)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("questions: []\n"), 0o600))
	_, err = LoadPool(empty)
	assert.Error(t, err)

	_, err = LoadPool(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadedPoolPadsLargestRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writePool(t, path, DefaultPool[len(DefaultPool)-MaxCount:])
	pool, err := LoadPool(path)
	require.NoError(t, err)

	got, err := Pad(nil, pool, MaxCount)
	require.NoError(t, err)
	assert.True(t, Validate(got, MaxCount))
}

func TestTopTraits(t *testing.T) {
	traits := TopTraits(map[string]float64{
		"openness":          0.9,
		"agreeableness":     0.6,
		"conscientiousness": 0.9,
		"neuroticism":       0.2,
	}, 3)

	require.Len(t, traits, 3)
	assert.Equal(t, "conscientiousness", traits[0].Name)
	assert.Equal(t, "openness", traits[1].Name)
	assert.Equal(t, "agreeableness", traits[2].Name)
}

func TestBuildInstruction(t *testing.T) {
	instruction := BuildInstruction(&entity.UserProfile{
		Role:              "Team Lead",
		Function:          "Customer Success",
		Challenges:        []string{"burnout", "prioritisation"},
		PersonalityScores: map[string]float64{"extraversion": 0.8},
	}, 5)

	assert.Contains(t, instruction, "Role: Team Lead")
	assert.Contains(t, instruction, "Function: Customer Success")
	assert.Contains(t, instruction, "Challenges: burnout; prioritisation")
	assert.Contains(t, instruction, "Strongest traits: extraversion")
	assert.Contains(t, instruction, "Return exactly 5 questions")
	assert.Contains(t, instruction, "between 10 and 70 characters")
}
