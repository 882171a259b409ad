package shiftctl

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/okian/shift/internal/domain/model"
)

// answersDoc accepts a bare list or a mapping with an "answers" list.
type answersDoc struct {
	Answers []model.Answer `yaml:"answers"`
}

// LoadAnswers reads a JSON or YAML answers file. Pillars are normalized
// ("e" -> "E"); rows without a question id are skipped.
func LoadAnswers(path string) ([]model.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadAnswers, err)
	}
	return ParseAnswers(data)
}

// ParseAnswers decodes the content of an answers file.
func ParseAnswers(data []byte) ([]model.Answer, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadAnswers, err)
	}

	if len(node.Content) == 0 {
		return nil, nil
	}

	var rows []model.Answer
	if node.Content[0].Kind == yaml.MappingNode {
		var doc answersDoc
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadAnswers, err)
		}
		rows = doc.Answers
	} else if err := node.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadAnswers, err)
	}

	out := rows[:0]
	for _, a := range rows {
		if a.QuestionID == "" {
			continue
		}
		a.Pillar = model.ParsePillar(string(a.Pillar))
		out = append(out, a)
	}
	return out, nil
}

// byPillar groups answers for upload. Answers without a valid pillar hint
// are returned separately since the server needs an area per submission.
func byPillar(answers []model.Answer) (map[model.Pillar]map[string]float64, []model.Answer) {
	groups := make(map[model.Pillar]map[string]float64, 3)
	var skipped []model.Answer
	for _, a := range answers {
		if !a.Pillar.Valid() {
			skipped = append(skipped, a)
			continue
		}
		if groups[a.Pillar] == nil {
			groups[a.Pillar] = make(map[string]float64)
		}
		groups[a.Pillar][a.QuestionID] = a.Value
	}
	return groups, skipped
}

// storedOrder returns answers the way the server holds them after a
// pillar-by-pillar upload: pillars in E, S, G order and each submission
// sorted by question id. Weight sums depend on that order.
func storedOrder(answers []model.Answer) []model.Answer {
	groups, _ := byPillar(answers)
	out := make([]model.Answer, 0, len(answers))
	for _, p := range model.Pillars() {
		ids := make([]string, 0, len(groups[p]))
		for id := range groups[p] {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			out = append(out, model.Answer{QuestionID: id, Pillar: p, Value: groups[p][id]})
		}
	}
	return out
}
