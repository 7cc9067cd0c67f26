package search

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultQueries is the query list used when no queries file is given.
var DefaultQueries = []string{
	"What is the purpose of this blind text and what information does it provide about typography?",
	"What characteristics should this blind text have according to the document?",
	"How does this text help in evaluating typography?",
	"What are the specific requirements mentioned for this sample text?",
}

// queryFile is the YAML layout of a queries file:
//
//	queries:
//	  - first question
//	  - second question
type queryFile struct {
	Queries []string `yaml:"queries"`
}

// LoadQueries reads a query list from a YAML file. Blank entries are dropped.
func LoadQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file: %w", err)
	}

	var qf queryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("failed to parse queries file %s: %w", path, err)
	}

	queries := make([]string, 0, len(qf.Queries))
	for _, q := range qf.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQueries, path)
	}
	return queries, nil
}
