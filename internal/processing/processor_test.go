package processing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	done  chan string
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int), done: make(chan string, 16)}
}

func (r *recorder) handler(failures int) Handler {
	return func(_ context.Context, id string) error {
		r.mu.Lock()
		r.calls[id]++
		n := r.calls[id]
		r.mu.Unlock()
		if n <= failures {
			return errors.New("busy")
		}
		r.done <- id
		return nil
	}
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func TestProcessorRunsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder()
	p := New(2, quiet())
	p.Start(ctx, rec.handler(0))

	require.NoError(t, p.EnqueueFaceMatch(ctx, "a"))
	require.NoError(t, p.EnqueueFaceMatch(ctx, "b"))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-rec.done:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("jobs did not run")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, got)
}

func TestProcessorRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder()
	p := New(1, quiet(), WithRetry(3, time.Millisecond))
	p.Start(ctx, rec.handler(2))

	require.NoError(t, p.EnqueueFaceMatch(ctx, "a"))
	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed after retries")
	}
	assert.Equal(t, 3, rec.count("a"))
}

func TestProcessorGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder()
	p := New(1, quiet(), WithRetry(2, time.Millisecond))
	p.Start(ctx, rec.handler(100))

	require.NoError(t, p.EnqueueFaceMatch(ctx, "a"))
	assert.Eventually(t, func() bool { return rec.count("a") == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rec.count("a"))
}

func TestProcessorQueueFull(t *testing.T) {
	p := New(1, quiet())
	for i := 0; i < cap(p.queue); i++ {
		require.NoError(t, p.EnqueueFaceMatch(context.Background(), "x"))
	}
	assert.ErrorIs(t, p.EnqueueFaceMatch(context.Background(), "x"), ErrQueueFull)
}

func TestProcessorStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(2, quiet())
	p.Start(ctx, newRecorder().handler(0))
	cancel()
	p.Wait()
	assert.Eventually(t, func() bool {
		return errors.Is(p.EnqueueFaceMatch(context.Background(), "late"), ErrStopped)
	}, time.Second, time.Millisecond)
}
