package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/parivyaya/internal/queue"
)

// Pool runs several worker instances as members of one consumer group.
type Pool struct {
	worker *Worker
	sub    queue.Subscriber
	topic  string
	group  string
	size   int
	log    *slog.Logger
}

func NewPool(w *Worker, sub queue.Subscriber, topic, group string, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{worker: w, sub: sub, topic: topic, group: group, size: size, log: logger}
}

// Run blocks until ctx is cancelled and every instance has finished its
// in-flight task, or until one instance fails.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("starting worker pool", "topic", p.topic, "group", p.group, "workers", p.size)
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= p.size; i++ {
		g.Go(func() error {
			w := *p.worker
			w.log = p.worker.log.With("worker_id", i)

			sub, err := p.sub.Subscribe(gctx, p.topic, p.group)
			if err != nil {
				return fmt.Errorf("worker %d subscribe: %w", i, err)
			}
			defer func() {
				if err := sub.Close(); err != nil {
					w.log.Warn("closing subscription failed", "error", err)
				}
			}()
			return w.Run(gctx, sub)
		})
	}
	err := g.Wait()
	if err != nil {
		p.log.Error("worker pool stopped", "error", err)
		return err
	}
	p.log.Info("worker pool stopped")
	return nil
}
