package file

import (
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

type casesFile struct {
	Cases []domain.EvaluationCase `yaml:"cases"`
}

// LoadCases reads labelled evaluation cases from a YAML or JSON file.
func LoadCases(path string) ([]domain.EvaluationCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	return ParseCases(data)
}

// ParseCases decodes and validates evaluation cases.
// Case IDs must be unique; a missing ID is replaced by the 1-based position.
func ParseCases(data []byte) ([]domain.EvaluationCase, error) {
	var doc casesFile
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse cases: %v", domain.ErrInvalidInput, err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("%w: no evaluation cases", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(doc.Cases))
	for i := range doc.Cases {
		c := &doc.Cases[i]
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate case id %q", domain.ErrInvalidInput, c.ID)
		}
		seen[c.ID] = true
		c.Query = strings.TrimSpace(c.Query)
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Cases, nil
}
