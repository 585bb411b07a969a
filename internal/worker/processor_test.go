package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/queue"
)

type matcherFunc func(ctx context.Context, id string) (kyc.FaceMatchOutcome, error)

func (f matcherFunc) ProcessFaceMatch(ctx context.Context, id string) (kyc.FaceMatchOutcome, error) {
	return f(ctx, id)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleFaceMatch(t *testing.T) {
	var got string
	p := NewProcessor(matcherFunc(func(_ context.Context, id string) (kyc.FaceMatchOutcome, error) {
		got = id
		return kyc.OutcomeMatched, nil
	}), discard())

	task, err := queue.NewFaceMatchTask("sess-9")
	require.NoError(t, err)
	require.NoError(t, p.Handler().ProcessTask(context.Background(), task))
	assert.Equal(t, "sess-9", got)
}

func TestHandleFaceMatchBadPayloadSkipsRetry(t *testing.T) {
	p := NewProcessor(matcherFunc(func(context.Context, string) (kyc.FaceMatchOutcome, error) {
		t.Fatal("matcher must not run")
		return "", nil
	}), discard())

	err := p.Handler().ProcessTask(context.Background(), asynq.NewTask(queue.FaceMatchTask, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleFaceMatchPropagatesErrors(t *testing.T) {
	for _, want := range []error{kyc.ErrSessionBusy, errors.New("db down")} {
		p := NewProcessor(matcherFunc(func(context.Context, string) (kyc.FaceMatchOutcome, error) {
			return "", want
		}), discard())
		task, err := queue.NewFaceMatchTask("sess-1")
		require.NoError(t, err)
		err = p.Handler().ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, want)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	}
}
