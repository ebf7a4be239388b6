package worker

import (
	"context"

	"ledgerhooks/pkg/queue"
)

// Listener receives worker lifecycle callbacks. All fields are optional.
type Listener struct {
	OnStart     func(ctx context.Context)
	OnExit      func(ctx context.Context)
	OnJobStart  func(ctx context.Context, job *queue.Job)
	OnJobFinish func(ctx context.Context, job *queue.Job, err error)
	OnError     func(ctx context.Context, err error)
}

func (l Listener) start(ctx context.Context) {
	if l.OnStart != nil {
		l.OnStart(ctx)
	}
}

func (l Listener) exit(ctx context.Context) {
	if l.OnExit != nil {
		l.OnExit(ctx)
	}
}

func (l Listener) jobStart(ctx context.Context, job *queue.Job) {
	if l.OnJobStart != nil {
		l.OnJobStart(ctx, job)
	}
}

func (l Listener) jobFinish(ctx context.Context, job *queue.Job, err error) {
	if l.OnJobFinish != nil {
		l.OnJobFinish(ctx, job, err)
	}
}

func (l Listener) errored(ctx context.Context, err error) {
	if l.OnError != nil {
		l.OnError(ctx, err)
	}
}
