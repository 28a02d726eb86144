package extract

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryOther is the fallback category when no keyword matches.
const CategoryOther = "Outros"

// fallbackConfidence marks results produced without the AI backend.
const fallbackConfidence = 0.3

//go:embed keywords.yaml
var defaultKeywordTable []byte

type keywordTable struct {
	Categories map[string][]string `yaml:"categories"`
}

// Classifier is the deterministic keyword classifier used when the AI call
// fails. It scans text against a static category→keyword table.
type Classifier struct {
	table keywordTable
	// order keeps category iteration stable so classification is
	// deterministic across runs.
	order []string
}

// NewClassifier loads the keyword table from path, or the embedded default
// when path is empty.
func NewClassifier(path string) (*Classifier, error) {
	raw := defaultKeywordTable
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read keyword table: %w", err)
		}
		raw = data
	}
	var table keywordTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse keyword table: %w", err)
	}
	order := make([]string, 0, len(table.Categories))
	for category := range table.Categories {
		order = append(order, category)
	}
	sort.Strings(order)
	return &Classifier{table: table, order: order}, nil
}

// Classify returns a low-confidence result from keyword matching. The
// category with the most keyword hits wins; ties break alphabetically.
func (c *Classifier) Classify(text string) Result {
	normalized := strings.ToLower(text)
	best := CategoryOther
	bestHits := 0
	for _, category := range c.order {
		hits := 0
		for _, keyword := range c.table.Categories[category] {
			if strings.Contains(normalized, strings.ToLower(keyword)) {
				hits++
			}
		}
		if hits > bestHits {
			best = category
			bestHits = hits
		}
	}
	result := Result{
		Category:   best,
		Confidence: fallbackConfidence,
	}
	if strings.TrimSpace(text) != "" && bestHits > 0 {
		result.Description = strings.TrimSpace(text)
	}
	return result
}
