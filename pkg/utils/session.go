package utils

import (
	"context"
	"sync"
	"time"
)

// Session owns the lifetime of one long-lived activity (a client loop, a
// gateway connection, a bot). Goroutines launched through Go are waited on
// during teardown so a cancelled session leaves nothing running.
type Session struct {
	context   context.Context
	cancel    context.CancelFunc
	group     *sync.WaitGroup
	startTime time.Time
}

func NewSession(ctx context.Context) Session {
	ctx, cancel := context.WithCancel(ctx)
	return Session{
		context:   ctx,
		cancel:    cancel,
		group:     new(sync.WaitGroup),
		startTime: time.Now(),
	}
}

func (s *Session) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func (s *Session) Ctx() context.Context {
	return s.context
}

func (s *Session) IsDone() bool {
	return s.context.Err() != nil
}

// Go runs fn on its own goroutine, tracked so Wait can block on it.
func (s *Session) Go(fn func()) {
	s.group.Add(1)
	go func() {
		defer s.group.Done()
		fn()
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (s *Session) Wait() {
	s.group.Wait()
}

func (s *Session) Cancel() {
	s.cancel()
}
