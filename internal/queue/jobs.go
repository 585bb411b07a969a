// Package queue defines the face-match task and its asynq producer.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// FaceMatchTask is scheduled each time a selfie is submitted.
	FaceMatchTask = "kyc:face_match"

	defaultQueue = "kyc"
)

// FaceMatchPayload tells the worker which session to evaluate.
type FaceMatchPayload struct {
	SessionID string `json:"session_id"`
}

// NewFaceMatchTask builds the asynq task for a session.
func NewFaceMatchTask(sessionID string, opts ...asynq.Option) (*asynq.Task, error) {
	if sessionID == "" {
		return nil, errors.New("face match task: empty session id")
	}
	data, err := json.Marshal(FaceMatchPayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(FaceMatchTask, data, opts...), nil
}

// ParseFaceMatch decodes a task payload.
func ParseFaceMatch(task *asynq.Task) (FaceMatchPayload, error) {
	var payload FaceMatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.SessionID == "" {
		return payload, errors.New("decode payload: missing session_id")
	}
	return payload, nil
}

// Enqueuer publishes face-match tasks through an asynq client.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer wraps client. Tasks are retried up to maxRetry times.
func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

// EnqueueFaceMatch schedules the face match for sessionID.
func (e *Enqueuer) EnqueueFaceMatch(ctx context.Context, sessionID string) error {
	task, err := NewFaceMatchTask(sessionID, asynq.MaxRetry(e.maxRetry), asynq.Queue(defaultQueue))
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue face match task: %w", err)
	}
	return nil
}

// Queues is the asynq.Config queue map the worker should consume.
func Queues() map[string]int {
	return map[string]int{defaultQueue: 1}
}
