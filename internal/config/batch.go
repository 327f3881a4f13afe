package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"surveyor/internal/question"
)

// Batch is one runnable unit: a question template, the word lists to
// expand it over, and the schema the answers must follow.
type Batch struct {
	Template string          `yaml:"template"`
	WordSets WordSets        `yaml:"word_sets"`
	Schema   question.Schema `yaml:"schema"`
}

// WordSets preserves the YAML mapping order, which fixes the expansion
// order of the cartesian product across runs.
type WordSets []question.WordList

// UnmarshalYAML decodes a mapping of parameter name to value list while
// keeping the document's key order.
func (w *WordSets) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("word_sets must map parameter names to value lists (line %d)", node.Line)
	}
	lists := make([]question.WordList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		var values []string
		if err := valueNode.Decode(&values); err != nil {
			return fmt.Errorf("word set %q: %w", keyNode.Value, err)
		}
		lists = append(lists, question.WordList{Name: keyNode.Value, Values: values})
	}
	*w = lists
	return nil
}

// MarshalYAML renders the word sets back as an ordered mapping.
func (w WordSets) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, wl := range w {
		var valueNode yaml.Node
		if err := valueNode.Encode(wl.Values); err != nil {
			return nil, fmt.Errorf("word set %q: %w", wl.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: wl.Name},
			&valueNode,
		)
	}
	return node, nil
}

// LoadBatch reads and validates a batch definition file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if err := b.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("batch schema: %w", err)
	}
	return &b, nil
}

// QuestionSet converts the batch into an expandable question set. The
// conversion re-checks that every template placeholder has a word list.
func (b *Batch) QuestionSet() (*question.Set, error) {
	return question.NewSet(b.Template, b.WordSets, b.Schema)
}
