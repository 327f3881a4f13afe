package storage

import (
	"context"
	"sync"

	"surveyor/internal/question"
)

// Memory is the volatile in-process backend. Entries live for the
// process lifetime only. Reads on different keys proceed concurrently;
// writes take the exclusive lock.
type Memory struct {
	mu      sync.RWMutex
	records map[string]record
	order   []string // insertion order for stable enumeration
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]record)}
}

func (m *Memory) Get(ctx context.Context, q question.Question) (question.QueryResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return question.QueryResponse{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[q.Value]
	if !ok {
		return question.QueryResponse{}, false, nil
	}
	return r.decodeResponse(), true, nil
}

func (m *Memory) Put(ctx context.Context, q question.Question, resp question.QueryResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := encodeRecord(q, resp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[q.Value]; !exists {
		m.order = append(m.order, q.Value)
	}
	m.records[q.Value] = r
	return nil
}

func (m *Memory) Delete(ctx context.Context, q question.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[q.Value]; !exists {
		return nil
	}
	delete(m.records, q.Value)
	for i, v := range m.order {
		if v == q.Value {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Questions(ctx context.Context) ([]question.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	questions := make([]question.Question, 0, len(m.order))
	for _, value := range m.order {
		q, err := m.records[value].decodeQuestion()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]record)
	m.order = nil
	return nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error { return nil }
