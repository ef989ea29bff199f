// Package background runs fire-and-forget work tied to the life of the
// server and drains it on shutdown.
package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log logrus.FieldLogger) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs fn on its own goroutine. The context passed to fn is cancelled when
// Shutdown starts; long-running loops should return on it.
func (b *Background) Go(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithFields(logrus.Fields{
					"task":  name,
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		fn(b.ctx)
	}()
}

// Shutdown cancels running tasks and waits for them until ctx expires.
func (b *Background) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
