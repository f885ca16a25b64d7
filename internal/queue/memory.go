package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBroker is an in-process broker with the same partition and consumer
// group semantics as the NATS broker. Every group sees every task; within a
// group a partition has at most one outstanding delivery, so partition order
// is also processing order.
type MemoryBroker struct {
	log  *slog.Logger
	opts options

	mu     sync.Mutex
	closed bool
	wake   chan struct{}
	topics map[string]*memTopic
}

type memTopic struct {
	parts  [][][]byte
	groups map[string]*memGroup
}

type memGroup struct {
	next      []uint64 // next offset to hand out
	committed []uint64
	handed    []uint64 // high-water mark of offsets ever handed out
	busy      []bool
	cursor    int
}

func NewMemoryBroker(logger *slog.Logger, opts ...Option) *MemoryBroker {
	return &MemoryBroker{
		log:    logger,
		opts:   newOptions(opts),
		wake:   make(chan struct{}),
		topics: make(map[string]*memTopic),
	}
}

// broadcast wakes every blocked Next. Callers hold b.mu.
func (b *MemoryBroker) broadcast() {
	close(b.wake)
	b.wake = make(chan struct{})
}

func (b *MemoryBroker) topic(name string) *memTopic {
	t, ok := b.topics[name]
	if !ok {
		t = &memTopic{
			parts:  make([][][]byte, b.opts.partitions),
			groups: make(map[string]*memGroup),
		}
		b.topics[name] = t
	}
	return t
}

func (t *memTopic) group(name string) *memGroup {
	g, ok := t.groups[name]
	if !ok {
		n := len(t.parts)
		g = &memGroup{
			next:      make([]uint64, n),
			committed: make([]uint64, n),
			handed:    make([]uint64, n),
			busy:      make([]bool, n),
		}
		t.groups[name] = g
	}
	return g
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeTask(task)
	if err != nil {
		return err
	}
	if b.opts.maxPayload > 0 && len(data) > b.opts.maxPayload {
		return fmt.Errorf("%w: task %s is %d bytes, limit %d", ErrTaskTooLarge, task.ID, len(data), b.opts.maxPayload)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.log.Warn("cannot publish: broker is shutting down", "task_id", task.ID)
		return ErrClosed
	}
	t := b.topic(topic)
	p := Partition(task.ID, len(t.parts))
	t.parts[p] = append(t.parts[p], data)
	b.broadcast()
	b.log.Debug("task published", "topic", topic, "task_id", task.ID, "partition", p, "offset", len(t.parts[p])-1)
	return nil
}

func (b *MemoryBroker) MaxDocumentBytes() int {
	return MaxDocumentFor(b.opts.maxPayload)
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic, group string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.topic(topic).group(group)
	return &memSubscription{b: b, topic: topic, group: group, held: make(map[int]uint64)}, nil
}

// Pending is the number of tasks the group has not committed yet.
func (b *MemoryBroker) Pending(topic, group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topic]
	if !ok {
		return 0
	}
	g := t.group(group)
	n := 0
	for p := range t.parts {
		n += len(t.parts[p]) - int(g.committed[p])
	}
	return n
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.broadcast()
	b.log.Info("memory broker closed")
	return nil
}

type memSubscription struct {
	b      *MemoryBroker
	topic  string
	group  string
	held   map[int]uint64 // partition -> outstanding offset
	closed bool
}

func (s *memSubscription) Next(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.b.mu.Lock()
		if s.b.closed || s.closed {
			s.b.mu.Unlock()
			return nil, ErrClosed
		}
		if d := s.take(); d != nil {
			s.b.mu.Unlock()
			return d, nil
		}
		wake := s.b.wake
		s.b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// take hands out the next free partition's head. Callers hold b.mu.
func (s *memSubscription) take() *Delivery {
	t := s.b.topics[s.topic]
	g := t.group(s.group)
	n := len(t.parts)
	for i := 0; i < n; i++ {
		p := (g.cursor + i) % n
		if g.busy[p] || g.next[p] >= uint64(len(t.parts[p])) {
			continue
		}
		off := g.next[p]
		g.next[p]++
		g.busy[p] = true
		if s.b.opts.policy == CommitOnReceive {
			g.committed[p] = off + 1
		}
		redelivered := off < g.handed[p]
		if off+1 > g.handed[p] {
			g.handed[p] = off + 1
		}
		g.cursor = (p + 1) % n
		s.held[p] = off

		return &Delivery{
			Data:        t.parts[p][off],
			Topic:       s.topic,
			Partition:   p,
			Offset:      off,
			Redelivered: redelivered,
			ack:         func() error { s.release(p, off); return nil },
		}
	}
	return nil
}

func (s *memSubscription) release(p int, off uint64) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if held, ok := s.held[p]; !ok || held != off {
		return
	}
	delete(s.held, p)
	g := s.b.topics[s.topic].group(s.group)
	g.busy[p] = false
	if s.b.opts.policy == CommitAfterProcess {
		g.committed[p] = off + 1
	}
	s.b.broadcast()
}

// Close gives up the subscription's partitions. Under CommitAfterProcess any
// unacked delivery is rewound so another member receives it again.
func (s *memSubscription) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if t, ok := s.b.topics[s.topic]; ok {
		g := t.group(s.group)
		for p := range s.held {
			g.busy[p] = false
			if s.b.opts.policy == CommitAfterProcess {
				g.next[p] = g.committed[p]
				s.b.log.Warn("returning unacked task to the group", "topic", s.topic, "group", s.group, "partition", p, "offset", g.committed[p])
			}
		}
	}
	s.held = map[int]uint64{}
	s.b.broadcast()
	return nil
}
