package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyor/internal/question"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      4 * time.Millisecond,
		ParseRetryDelay: time.Millisecond,
	}
}

func TestRetryDoFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	retries, err := fastPolicy().Do(context.Background(), func(int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestRetryDoTransientThenSuccess(t *testing.T) {
	calls := 0
	retries, err := fastPolicy().Do(context.Background(), func(attempt int) error {
		calls++
		if attempt == 0 {
			return fmt.Errorf("%w: status 503", ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, retries)
	assert.Equal(t, 2, calls)
}

func TestRetryDoClientErrorFailsImmediately(t *testing.T) {
	calls := 0
	retries, err := fastPolicy().Do(context.Background(), func(int) error {
		calls++
		return fmt.Errorf("%w: status 400", ErrClientRequest)
	})
	require.ErrorIs(t, err, ErrClientRequest)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestRetryDoExhaustsParseFailures(t *testing.T) {
	calls := 0
	retries, err := fastPolicy().Do(context.Background(), func(int) error {
		calls++
		return fmt.Errorf("%w: not json", ErrParse)
	})
	require.ErrorIs(t, err, ErrParse)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestRetryDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Minute}

	calls := 0
	_, err := p.Do(ctx, func(int) error {
		calls++
		cancel()
		return fmt.Errorf("%w: boom", ErrTransient)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryDoCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := fastPolicy().Do(ctx, func(int) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetryBackoffSchedule(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, 5*time.Second, p.backoff(3))
	assert.Equal(t, 5*time.Second, p.backoff(10))
}

func TestTimeoutsColdThenWarm(t *testing.T) {
	to := newTimeouts(60*time.Second, 30*time.Second)
	schema := question.Schema{Name: "assessment", Fields: []question.Field{
		{Name: "summary", Type: question.FieldString},
	}}

	assert.Equal(t, 60*time.Second, to.For(schema))
	assert.Equal(t, 30*time.Second, to.For(schema))

	other := question.Schema{Name: "other", Fields: schema.Fields}
	assert.Equal(t, 60*time.Second, to.For(other))

	// An empty schema has nothing to prepare.
	assert.Equal(t, 30*time.Second, to.For(question.Schema{}))
}
