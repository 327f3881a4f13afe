// Package workflow is the cache-aware query orchestrator. It resolves
// questions against storage first and the remote handler second: a
// sequential cache sweep classifies each question as hit or miss, hits
// replay immediately, and misses run on a bounded worker pool with their
// outcomes persisted before they are streamed back.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"surveyor/internal/logging"
	"surveyor/internal/question"
	"surveyor/internal/query"
	"surveyor/internal/storage"
	"surveyor/internal/usage"
)

// DefaultWorkers bounds concurrent remote queries when no limit is
// configured.
const DefaultWorkers = 3

// Config configures a Workflow.
type Config struct {
	// Workers bounds in-flight remote queries during batch dispatch.
	Workers int
	// Tracker records per-query token usage when set.
	Tracker *usage.Tracker
}

// Workflow coordinates questions, the query handler, and storage.
// Storage is the only shared mutable state; concurrent resolution of the
// same question value collapses to a single remote query.
type Workflow struct {
	handler query.Handler
	store   storage.Storage
	workers int
	tracker *usage.Tracker

	flight singleflight.Group
}

// New builds a Workflow around a handler and a storage backend.
func New(handler query.Handler, store storage.Storage, cfg Config) *Workflow {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Workflow{
		handler: handler,
		store:   store,
		workers: workers,
		tracker: cfg.Tracker,
	}
}

// Options configures one batch run.
type Options struct {
	// Workers overrides the workflow's dispatch bound for this run.
	Workers int
	// Overwrite classifies every question as a miss, forcing a fresh
	// query and a cache overwrite across the whole batch.
	Overwrite bool
	// MaxQuestions caps the expansion for partial runs; 0 means no cap.
	MaxQuestions int
	// RunID correlates usage events and logs; generated when empty.
	RunID string
}

// Sweep is the cache-sweep report. It is complete before any remote
// query is issued, so callers can use it for progress and cost
// estimation.
type Sweep struct {
	Hits   int
	Misses int
	Total  int
}

// Run is one batch execution: the sweep report plus the answer stream.
// Hits arrive first, in sweep order; miss answers follow in completion
// order, which is deliberately unspecified. The channel closes once
// every question has yielded exactly one answer. Abandon a run by
// cancelling the context handed to AskAll: delivery stops, but queries
// that already completed keep their cache writes.
type Run struct {
	ID      string
	Sweep   Sweep
	Answers <-chan question.Answer
}

// Ask resolves a single question: cache check (skipped under overwrite),
// then query and persist. A cached entry carrying an error is flushed
// and re-queried rather than served. Concurrent calls for the same
// question value share one resolution. Context and configuration errors
// are returned; query failures come back inside the Answer.
func (w *Workflow) Ask(ctx context.Context, q question.Question, overwrite bool) (question.Answer, error) {
	v, err, _ := w.flight.Do(q.Value, func() (any, error) {
		return w.resolve(ctx, q, overwrite)
	})
	if err != nil {
		return question.Answer{}, err
	}
	return v.(question.Answer), nil
}

func (w *Workflow) resolve(ctx context.Context, q question.Question, overwrite bool) (question.Answer, error) {
	if !overwrite {
		resp, found, err := w.store.Get(ctx, q)
		if err != nil {
			return question.Answer{}, fmt.Errorf("cache lookup for %q: %w", q.Value, err)
		}
		if found {
			if resp.Usable() {
				logging.WorkflowDebug("cache hit for %q", q.Value)
				return w.buildAnswer(q, resp), nil
			}
			// A stored failure is never served; flush it so a crash
			// before the re-query leaves a plain miss behind.
			logging.Workflow("flushing cached error for %q: %s", q.Value, resp.Error)
			if err := w.store.Delete(ctx, q); err != nil {
				return question.Answer{}, fmt.Errorf("flushing cached error for %q: %w", q.Value, err)
			}
		}
	}

	resp, err := w.query(ctx, q, "ask", "")
	if err != nil {
		return question.Answer{}, err
	}
	return w.buildAnswer(q, resp), nil
}

// AskAll runs the two-phase batch protocol over an expanded question
// set. Phase 1 sweeps the cache sequentially, no network involved:
// present error-free entries are hits, everything else is a miss, and
// under Overwrite everything is a miss. The report is in Run.Sweep
// before dispatch begins. Phase 2 streams answers on Run.Answers.
//
// Per-question failures never abort the batch; only expansion errors and
// sweep-time storage errors do, and those surface before any query is
// sent.
func (w *Workflow) AskAll(ctx context.Context, set *question.Set, opts Options) (*Run, error) {
	questions, err := set.Expand()
	if err != nil {
		return nil, err
	}
	if opts.MaxQuestions > 0 && len(questions) > opts.MaxQuestions {
		questions = questions[:opts.MaxQuestions]
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = w.workers
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logging.Workflow("run %s: sweeping %d questions (workers=%d, overwrite=%v)",
		runID, len(questions), workers, opts.Overwrite)

	type hit struct {
		q    question.Question
		resp question.QueryResponse
	}
	var hits []hit
	var misses []question.Question
	for _, q := range questions {
		if opts.Overwrite {
			misses = append(misses, q)
			continue
		}
		resp, found, err := w.store.Get(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("cache sweep for %q: %w", q.Value, err)
		}
		if found && resp.Usable() {
			hits = append(hits, hit{q: q, resp: resp})
		} else {
			// Absent, or present but error-bearing: both re-query.
			misses = append(misses, q)
		}
	}
	sweep := Sweep{Hits: len(hits), Misses: len(misses), Total: len(questions)}
	logging.Workflow("run %s: sweep complete, %d cached, %d need querying",
		runID, sweep.Hits, sweep.Misses)

	answers := make(chan question.Answer)
	go func() {
		defer close(answers)

		for _, h := range hits {
			if !send(ctx, answers, w.buildAnswer(h.q, h.resp)) {
				return
			}
		}

		var eg errgroup.Group
		eg.SetLimit(workers)
		for _, q := range misses {
			if ctx.Err() != nil {
				// Abandoned: not-yet-started dispatches are dropped.
				break
			}
			q := q
			eg.Go(func() error {
				resp, err := w.query(ctx, q, "batch", runID)
				if err != nil {
					if ctx.Err() != nil {
						// Interrupted mid-flight; nothing was persisted,
						// so the next sweep sees a plain miss.
						return nil
					}
					resp = question.QueryResponse{Error: err.Error()}
				}
				send(ctx, answers, w.buildAnswer(q, resp))
				return nil
			})
		}
		eg.Wait()
		logging.Workflow("run %s: dispatch complete", runID)
	}()

	return &Run{ID: runID, Sweep: sweep, Answers: answers}, nil
}

// Collect runs AskAll and gathers the whole stream.
func (w *Workflow) Collect(ctx context.Context, set *question.Set, opts Options) ([]question.Answer, Sweep, error) {
	run, err := w.AskAll(ctx, set, opts)
	if err != nil {
		return nil, Sweep{}, err
	}
	answers := make([]question.Answer, 0, run.Sweep.Total)
	for a := range run.Answers {
		answers = append(answers, a)
	}
	return answers, run.Sweep, nil
}

// DumpAnswers rebuilds answers for every stored question, optionally
// filtered by word-set parameter values. A question matches when every
// named parameter is present in its word set with exactly the given
// value.
func (w *Workflow) DumpAnswers(ctx context.Context, filters map[string]string) ([]question.Answer, error) {
	stored, err := w.store.Questions(ctx)
	if err != nil {
		return nil, err
	}
	var answers []question.Answer
	for _, q := range stored {
		if !matchesFilters(q, filters) {
			continue
		}
		resp, found, err := w.store.Get(ctx, q)
		if err != nil {
			return nil, err
		}
		if !found {
			// Deleted between enumeration and lookup.
			continue
		}
		answers = append(answers, w.buildAnswer(q, resp))
	}
	return answers, nil
}

// query issues the remote call and persists whatever outcome it settles
// on. The error return is reserved for cancellation and configuration
// faults; those persist nothing, which is what makes an interrupted
// batch safely resumable.
func (w *Workflow) query(ctx context.Context, q question.Question, op, runID string) (question.QueryResponse, error) {
	start := time.Now()
	res, err := w.handler.Query(ctx, q.Value, q.Schema)
	if err != nil {
		return question.QueryResponse{}, err
	}

	resp := question.QueryResponse{
		Payload:        res.RawResponse,
		Structured:     res.Structured,
		ParsingSuccess: res.ParsingSuccess,
		ParsingError:   res.ParsingError,
		RetriesUsed:    res.RetriesUsed,
	}
	if !res.ParsingSuccess {
		resp.Error = res.ParsingError
		if resp.Error == "" {
			resp.Error = "query produced no usable result"
		}
	}

	// The query completed, so its outcome lands even when the caller has
	// already abandoned the stream.
	if err := w.store.Put(context.WithoutCancel(ctx), q, resp); err != nil {
		return question.QueryResponse{}, fmt.Errorf("persisting answer for %q: %w", q.Value, err)
	}

	if w.tracker != nil {
		w.tracker.Track(usage.UsageEvent{
			Provider:     w.handler.Provider(),
			Model:        w.handler.Model(),
			Operation:    op,
			RunID:        runID,
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
			Duration:     time.Since(start),
		})
	}
	return resp, nil
}

// buildAnswer combines a question with its resolved response. The
// assembly is identical for hits and misses: callers cannot tell cache
// provenance from the answer shape.
func (w *Workflow) buildAnswer(q question.Question, resp question.QueryResponse) question.Answer {
	a := question.Answer{
		WordSet:       q.WordSet,
		QuestionValue: q.Value,
		Response:      resp,
		Fields:        map[string]any{},
	}
	if resp.Usable() {
		a.Fields = w.handler.ExtractFields(resp.Payload)
	} else {
		a.Error = resp.Error
	}
	return a
}

func matchesFilters(q question.Question, filters map[string]string) bool {
	for name, want := range filters {
		got, ok := q.WordSet[name]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// send delivers an answer unless the run has been abandoned.
func send(ctx context.Context, ch chan<- question.Answer, a question.Answer) bool {
	select {
	case ch <- a:
		return true
	case <-ctx.Done():
		return false
	}
}
