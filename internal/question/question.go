// Package question defines the domain model for parameterized question
// batches: templates, word lists, expanded questions, and the answer
// records assembled after each query resolves.
package question

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingParam indicates a template placeholder with no matching
// word-set parameter. This is a configuration error and is never retried.
var ErrMissingParam = errors.New("template parameter not defined")

// Question is a single fully-parameterized prompt. Value holds the
// template with every {param} placeholder substituted; it is the cache
// key for the question. Questions are immutable after construction.
type Question struct {
	Template string            `json:"template"`
	WordSet  map[string]string `json:"word_set"`
	Schema   Schema            `json:"schema,omitempty"`
	Value    string            `json:"value"`
}

// New builds a Question and renders its Value. It fails if the template
// references a parameter absent from the word set.
func New(template string, wordSet map[string]string, schema Schema) (Question, error) {
	value, err := Render(template, wordSet)
	if err != nil {
		return Question{}, err
	}
	ws := make(map[string]string, len(wordSet))
	for k, v := range wordSet {
		ws[k] = v
	}
	return Question{
		Template: template,
		WordSet:  ws,
		Schema:   schema,
		Value:    value,
	}, nil
}

// Equal reports structural equality: same template and same word set.
// Two equal questions always render to the same Value.
func (q Question) Equal(other Question) bool {
	if q.Template != other.Template || len(q.WordSet) != len(other.WordSet) {
		return false
	}
	for k, v := range q.WordSet {
		if ov, ok := other.WordSet[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Params returns the word-set parameter names in sorted order.
func (q Question) Params() []string {
	names := make([]string, 0, len(q.WordSet))
	for name := range q.WordSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes {param} placeholders in template with word-set
// values. An unterminated brace is kept literal; a placeholder naming an
// undefined parameter returns ErrMissingParam.
func Render(template string, wordSet map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			b.WriteByte(c)
			i++
			continue
		}
		name := template[i+1 : i+end]
		value, ok := wordSet[name]
		if !ok {
			return "", fmt.Errorf("rendering %q: parameter %q: %w", template, name, ErrMissingParam)
		}
		b.WriteString(value)
		i += end + 1
	}
	return b.String(), nil
}

// placeholders returns the parameter names referenced by template, in
// first-appearance order, without duplicates.
func placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for i := 0; i < len(template); {
		if template[i] != '{' {
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			break
		}
		name := template[i+1 : i+end]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		i += end + 1
	}
	return names
}

// WordList is one named parameter with its ordered candidate values.
type WordList struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Set is a question template plus per-parameter candidate lists. It
// defines a cartesian-product batch of questions: one question per
// combination of one value from each list.
type Set struct {
	Template  string     `json:"template"`
	WordLists []WordList `json:"word_lists"`
	Schema    Schema     `json:"schema,omitempty"`
}

// NewSet validates that every template placeholder is covered by a word
// list and that list names are unique. Parameters supplied but never
// referenced by the template are allowed.
func NewSet(template string, lists []WordList, schema Schema) (*Set, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.New("question set template is empty")
	}
	byName := make(map[string]bool, len(lists))
	for _, wl := range lists {
		if wl.Name == "" {
			return nil, errors.New("word list with empty parameter name")
		}
		if byName[wl.Name] {
			return nil, fmt.Errorf("duplicate word list %q", wl.Name)
		}
		byName[wl.Name] = true
	}
	for _, name := range placeholders(template) {
		if !byName[name] {
			return nil, fmt.Errorf("template %q: parameter %q: %w", template, name, ErrMissingParam)
		}
	}
	return &Set{Template: template, WordLists: lists, Schema: schema}, nil
}

// Count returns the number of questions the set expands to: the product
// of the candidate counts. A set with no word lists expands to the bare
// template, count 1. Any empty list collapses the product to 0.
func (s *Set) Count() int {
	count := 1
	for _, wl := range s.WordLists {
		count *= len(wl.Values)
	}
	return count
}

// Iter returns a fresh iterator over the set's questions. Iteration is
// deterministic and restartable: the walk is row-major over the word
// lists in their declared order, with the last list varying fastest.
func (s *Set) Iter() *Iterator {
	return &Iterator{set: s, idx: make([]int, len(s.WordLists))}
}

// Expand materializes the full question sequence in iteration order.
func (s *Set) Expand() ([]Question, error) {
	questions := make([]Question, 0, s.Count())
	it := s.Iter()
	for {
		q, ok := it.Next()
		if !ok {
			break
		}
		questions = append(questions, q)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

// Iterator walks a Set's cartesian product one question at a time.
type Iterator struct {
	set  *Set
	idx  []int
	done bool
	err  error
}

// Next returns the next question in the sequence. It returns false when
// the sequence is exhausted or an error occurred; check Err afterwards.
func (it *Iterator) Next() (Question, bool) {
	if it.done || it.err != nil {
		return Question{}, false
	}
	for _, wl := range it.set.WordLists {
		if len(wl.Values) == 0 {
			it.done = true
			return Question{}, false
		}
	}

	wordSet := make(map[string]string, len(it.set.WordLists))
	for i, wl := range it.set.WordLists {
		wordSet[wl.Name] = wl.Values[it.idx[i]]
	}
	q, err := New(it.set.Template, wordSet, it.set.Schema)
	if err != nil {
		// Possible only for sets built by hand around NewSet.
		it.err = err
		return Question{}, false
	}
	it.advance()
	return q, true
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) advance() {
	if len(it.idx) == 0 {
		it.done = true
		return
	}
	for i := len(it.idx) - 1; i >= 0; i-- {
		it.idx[i]++
		if it.idx[i] < len(it.set.WordLists[i].Values) {
			return
		}
		it.idx[i] = 0
	}
	it.done = true
}
