// Package queue carries tasks from the submission side to the workers over a
// partitioned topic with consumer groups and at-least-once delivery.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed       = errors.New("queue: closed")
	ErrTaskTooLarge = errors.New("queue: task exceeds the broker payload limit")
)

// CommitPolicy decides when a consumer group's read position moves past a delivery.
type CommitPolicy int

const (
	// CommitOnReceive commits as soon as a delivery is handed to the caller.
	// A crash mid-processing loses the task.
	CommitOnReceive CommitPolicy = iota
	// CommitAfterProcess commits on Ack. Unacked deliveries go to the next
	// group member once their subscription closes.
	CommitAfterProcess
)

func (p CommitPolicy) String() string {
	if p == CommitAfterProcess {
		return "after_process"
	}
	return "on_receive"
}

type Publisher interface {
	// Publish appends task to topic and returns once the broker has it.
	Publish(ctx context.Context, topic string, task Task) error
	// MaxDocumentBytes is the largest raw document a task can inline, or 0
	// when the broker imposes no limit.
	MaxDocumentBytes() int
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string) (Subscription, error)
}

// Subscription is one member of a consumer group.
type Subscription interface {
	// Next blocks for the next delivery. It returns ctx.Err() when ctx ends
	// and ErrClosed once the subscription or broker is closed.
	Next(ctx context.Context) (*Delivery, error)
	Close() error
}

// Broker is a Publisher and Subscriber sharing one connection.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Delivery is one task read from a partition.
type Delivery struct {
	Data        []byte
	Topic       string
	Partition   int
	Offset      uint64
	Redelivered bool

	once sync.Once
	ack  func() error
	err  error
}

// Ack tells the broker the caller is done with the delivery. Under
// CommitAfterProcess this is what commits it. Repeated calls are no-ops.
func (d *Delivery) Ack() error {
	d.once.Do(func() {
		if d.ack != nil {
			d.err = d.ack()
		}
	})
	return d.err
}

type options struct {
	partitions int
	policy     CommitPolicy
	fetchBatch int
	ackWait    time.Duration
	maxPayload int
}

type Option func(*options)

func WithPartitions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.partitions = n
		}
	}
}

func WithCommitPolicy(p CommitPolicy) Option {
	return func(o *options) { o.policy = p }
}

func WithFetchBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.fetchBatch = n
		}
	}
}

// WithAckWait bounds how long the NATS broker waits for an ack before redelivering.
func WithAckWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ackWait = d
		}
	}
}

// WithMaxPayload caps an encoded task at n bytes. The NATS broker also
// applies the server's own limit, whichever is smaller.
func WithMaxPayload(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayload = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		partitions: 4,
		policy:     CommitOnReceive,
		fetchBatch: 16,
		ackWait:    30 * time.Minute,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
