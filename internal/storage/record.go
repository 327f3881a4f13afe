package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"surveyor/internal/question"
)

// record is the single serialization boundary between the domain types
// and a stored row. Both backends encode and decode through it so they
// share identical round-trip semantics; nested values (word set, payload,
// structured data) travel as JSON.
type record struct {
	Value          string
	Template       string
	WordSetJSON    []byte
	Payload        []byte
	Structured     []byte
	ParsingSuccess bool
	ParsingError   string
	RetriesUsed    int
	Error          string
	CreatedAt      time.Time
}

func encodeRecord(q question.Question, resp question.QueryResponse) (record, error) {
	wordSet, err := json.Marshal(q.WordSet)
	if err != nil {
		return record{}, fmt.Errorf("encoding word set: %w", err)
	}
	return record{
		Value:          q.Value,
		Template:       q.Template,
		WordSetJSON:    wordSet,
		Payload:        append([]byte(nil), resp.Payload...),
		Structured:     append([]byte(nil), resp.Structured...),
		ParsingSuccess: resp.ParsingSuccess,
		ParsingError:   resp.ParsingError,
		RetriesUsed:    resp.RetriesUsed,
		Error:          resp.Error,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (r record) decodeQuestion() (question.Question, error) {
	var wordSet map[string]string
	if len(r.WordSetJSON) > 0 {
		if err := json.Unmarshal(r.WordSetJSON, &wordSet); err != nil {
			return question.Question{}, fmt.Errorf("decoding word set for %q: %w", r.Value, err)
		}
	}
	// The stored value stays authoritative as the key even if the
	// template would render differently today.
	return question.Question{
		Template: r.Template,
		WordSet:  wordSet,
		Value:    r.Value,
	}, nil
}

func (r record) decodeResponse() question.QueryResponse {
	return question.QueryResponse{
		Payload:        append(json.RawMessage(nil), r.Payload...),
		Structured:     append(json.RawMessage(nil), r.Structured...),
		ParsingSuccess: r.ParsingSuccess,
		ParsingError:   r.ParsingError,
		RetriesUsed:    r.RetriesUsed,
		Error:          r.Error,
	}
}
