package personalize

import (
	"fmt"
	"sort"
	"strings"

	"coaching-rag-be/internal/entity"
)

const (
	MinQuestionLength = 10
	MaxQuestionLength = 70
	topTraits         = 3
)

type Trait struct {
	Name  string
	Score float64
}

// TopTraits ranks personality scores descending, ties by name, and keeps the first n.
func TopTraits(scores map[string]float64, n int) []Trait {
	traits := make([]Trait, 0, len(scores))
	for name, score := range scores {
		traits = append(traits, Trait{Name: name, Score: score})
	}
	sort.Slice(traits, func(i, j int) bool {
		if traits[i].Score != traits[j].Score {
			return traits[i].Score > traits[j].Score
		}
		return traits[i].Name < traits[j].Name
	})
	if len(traits) > n {
		traits = traits[:n]
	}
	return traits
}

// BuildInstruction embeds the profile and the output contract the parser enforces.
func BuildInstruction(profile *entity.UserProfile, count int) string {
	var b strings.Builder

	b.WriteString("<task>\n")
	b.WriteString("You write coaching questions a professional would ask their AI coach.\n")
	b.WriteString("</task>\n\n")

	b.WriteString("<profile>\n")
	b.WriteString(fmt.Sprintf("Role: %s\n", profile.Role))
	b.WriteString(fmt.Sprintf("Function: %s\n", profile.Function))
	if len(profile.Challenges) > 0 {
		b.WriteString(fmt.Sprintf("Challenges: %s\n", strings.Join(profile.Challenges, "; ")))
	}
	if traits := TopTraits(profile.PersonalityScores, topTraits); len(traits) > 0 {
		names := make([]string, len(traits))
		for i, t := range traits {
			names[i] = t.Name
		}
		b.WriteString(fmt.Sprintf("Strongest traits: %s\n", strings.Join(names, ", ")))
	}
	b.WriteString("</profile>\n\n")

	b.WriteString("<output_contract>\n")
	b.WriteString(fmt.Sprintf("Return exactly %d questions, one per line, nothing else.\n", count))
	b.WriteString("Write each question in the first person, as the user would ask it.\n")
	b.WriteString("End every line with a question mark.\n")
	b.WriteString(fmt.Sprintf("Each question must be between %d and %d characters.\n", MinQuestionLength, MaxQuestionLength))
	b.WriteString("Never repeat a question.\n")
	b.WriteString("</output_contract>")

	return b.String()
}
