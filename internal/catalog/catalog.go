// Package catalog loads the question catalog: the rows that give every
// question its pillar, category and optional category weight.
package catalog

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/shift/internal/domain/model"
)

// Canonical column names.
const (
	colID             = "id"
	colPillar         = "pillar"
	colTitle          = "title"
	colCategory       = "category"
	colSubcategory    = "subcategory"
	colWeight         = "weight"
	colCategoryWeight = "categoryweight"
)

// aliases maps lower-cased header spellings to canonical columns.
var aliases = map[string]string{
	"id":              colID,
	"qid":             colID,
	"pillar":          colPillar,
	"filar":           colPillar,
	"title":           colTitle,
	"question":        colTitle,
	"pytanie":         colTitle,
	"category":        colCategory,
	"kategoria":       colCategory,
	"subcategory":     colSubcategory,
	"podkategoria":    colSubcategory,
	"weight":          colWeight,
	"waga":            colWeight,
	"categoryweight":  colCategoryWeight,
	"category_weight": colCategoryWeight,
	"waga_kategorii":  colCategoryWeight,
}

func normalizeHeader(h string) string {
	k := strings.ToLower(strings.TrimSpace(h))
	if c, ok := aliases[k]; ok {
		return c
	}
	return k
}

// Load reads and parses the catalog at path.
func Load(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}
	rows, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, path, err)
	}
	return rows, nil
}

// Parse decodes a YAML or JSON catalog document. The document is either a
// list of rows or a mapping with a "questions" list. Rows without a valid
// pillar or a title are dropped; rows without an id get <pillar><row#>.
func Parse(data []byte) ([]model.Question, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var raw []any
	switch v := doc.(type) {
	case nil:
		return []model.Question{}, nil
	case []any:
		raw = v
	case map[string]any:
		list, ok := v["questions"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: mapping without a questions list", ErrBadDocument)
		}
		raw = list
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadDocument, doc)
	}

	out := make([]model.Question, 0, len(raw))
	for idx, r := range raw {
		fields, ok := r.(map[string]any)
		if !ok {
			continue
		}
		q := rowToQuestion(normalizeRow(fields), idx)
		if !q.Pillar.Valid() || q.Title == "" {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// normalizeRow keys every non-empty cell by its canonical column. An
// exact canonical header wins over an alias of the same column.
func normalizeRow(fields map[string]any) map[string]string {
	row := make(map[string]string, len(fields))
	exact := make(map[string]bool, len(fields))
	for k, v := range fields {
		s := strings.TrimSpace(cellString(v))
		if s == "" {
			continue
		}
		col := normalizeHeader(k)
		isExact := strings.ToLower(strings.TrimSpace(k)) == col
		if _, seen := row[col]; seen && (exact[col] || !isExact) {
			continue
		}
		row[col] = s
		exact[col] = isExact
	}
	return row
}

func rowToQuestion(row map[string]string, idx int) model.Question {
	pillar := model.ParsePillar(row[colPillar])
	id := row[colID]
	if id == "" {
		prefix := string(pillar)
		if prefix == "" {
			prefix = "X"
		}
		id = prefix + strconv.Itoa(idx+1)
	}
	return model.Question{
		ID:             id,
		Pillar:         pillar,
		Title:          row[colTitle],
		Category:       row[colCategory],
		Subcategory:    row[colSubcategory],
		Weight:         number(row[colWeight]),
		CategoryWeight: number(row[colCategoryWeight]),
	}
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// number parses a cell as a weight. Unparsable, non-finite and zero
// values all read as "not set".
func number(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Filter returns the rows of pillar. An empty pillar returns rows as is.
func Filter(rows []model.Question, pillar string) []model.Question {
	if strings.TrimSpace(pillar) == "" {
		return rows
	}
	p := model.ParsePillar(pillar)
	out := make([]model.Question, 0, len(rows))
	for _, q := range rows {
		if q.Pillar == p {
			out = append(out, q)
		}
	}
	return out
}
