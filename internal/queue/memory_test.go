package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextTask(t *testing.T, sub Subscription) (*Delivery, Task) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	task, err := DecodeTask(d.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return d, task
}

func TestMemoryPartitionOrder(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(1))
	ctx := context.Background()
	sub, err := b.Subscribe(ctx, "tasks", "g")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := b.Publish(ctx, "tasks", Task{ID: fmt.Sprintf("J%d", i), Kind: KindExtractRecords}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		d, task := nextTask(t, sub)
		if task.ID != fmt.Sprintf("J%d", i) {
			t.Fatalf("delivery %d = %s", i, task.ID)
		}
		if d.Offset != uint64(i) {
			t.Fatalf("offset = %d, want %d", d.Offset, i)
		}
		_ = d.Ack()
	}
}

func TestMemoryPartitionHeldUntilAck(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(1))
	ctx := context.Background()
	a, _ := b.Subscribe(ctx, "tasks", "g")
	c, _ := b.Subscribe(ctx, "tasks", "g")
	_ = b.Publish(ctx, "tasks", Task{ID: "J1"})
	_ = b.Publish(ctx, "tasks", Task{ID: "J2"})

	d, _ := nextTask(t, a)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := c.Next(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second member got a delivery while partition busy: %v", err)
	}

	_ = d.Ack()
	_, task := nextTask(t, c)
	if task.ID != "J2" {
		t.Fatalf("after ack got %s, want J2", task.ID)
	}
}

func TestMemoryGroupsAreIndependent(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(2))
	ctx := context.Background()
	g1, _ := b.Subscribe(ctx, "tasks", "g1")
	g2, _ := b.Subscribe(ctx, "tasks", "g2")
	_ = b.Publish(ctx, "tasks", Task{ID: "J1"})

	for _, sub := range []Subscription{g1, g2} {
		d, task := nextTask(t, sub)
		if task.ID != "J1" {
			t.Fatalf("got %s", task.ID)
		}
		_ = d.Ack()
	}
}

func TestMemoryCommitOnReceiveDropsUnacked(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(1))
	ctx := context.Background()
	a, _ := b.Subscribe(ctx, "tasks", "g")
	_ = b.Publish(ctx, "tasks", Task{ID: "J1"})

	nextTask(t, a)
	if n := b.Pending("tasks", "g"); n != 0 {
		t.Fatalf("pending after hand-off = %d, want 0", n)
	}
	_ = a.Close()

	c, _ := b.Subscribe(ctx, "tasks", "g")
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := c.Next(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("committed task was redelivered: %v", err)
	}
}

func TestMemoryCommitAfterProcessRedelivers(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(1), WithCommitPolicy(CommitAfterProcess))
	ctx := context.Background()
	a, _ := b.Subscribe(ctx, "tasks", "g")
	_ = b.Publish(ctx, "tasks", Task{ID: "J1"})

	d, _ := nextTask(t, a)
	if d.Redelivered {
		t.Fatal("first delivery flagged as redelivered")
	}
	if n := b.Pending("tasks", "g"); n != 1 {
		t.Fatalf("pending before ack = %d, want 1", n)
	}
	_ = a.Close()
	if err := d.Ack(); err != nil {
		t.Fatalf("late ack: %v", err)
	}

	c, _ := b.Subscribe(ctx, "tasks", "g")
	d2, task := nextTask(t, c)
	if task.ID != "J1" || !d2.Redelivered {
		t.Fatalf("redelivery = %s redelivered=%v", task.ID, d2.Redelivered)
	}
	_ = d2.Ack()
	if n := b.Pending("tasks", "g"); n != 0 {
		t.Fatalf("pending after ack = %d", n)
	}
}

func TestMemoryNextHonorsContextAndClose(t *testing.T) {
	b := NewMemoryBroker(testLogger())
	sub, _ := b.Subscribe(context.Background(), "tasks", "g")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = b.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("err = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after broker close")
	}

	if err := b.Publish(context.Background(), "tasks", Task{ID: "J1"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close = %v", err)
	}
}

func TestMemoryConcurrentConsumersSeeEachTaskOnce(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithPartitions(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const total = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		sub, _ := b.Subscribe(ctx, "tasks", "g")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				d, err := sub.Next(ctx)
				if err != nil {
					return
				}
				task, _ := DecodeTask(d.Data)
				mu.Lock()
				seen[task.ID]++
				done := len(seen) == total
				mu.Unlock()
				_ = d.Ack()
				if done {
					cancel()
				}
			}
		}()
	}
	for i := 0; i < total; i++ {
		if err := b.Publish(ctx, "tasks", Task{ID: fmt.Sprintf("T%03d", i)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers did not drain the topic")
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("task %s delivered %d times", id, n)
		}
	}
	if len(seen) != total {
		t.Fatalf("saw %d tasks, want %d", len(seen), total)
	}
}

func TestMemoryPayloadLimit(t *testing.T) {
	b := NewMemoryBroker(testLogger(), WithMaxPayload(8<<10))
	defer b.Close()

	limit := b.MaxDocumentBytes()
	if limit <= 0 || limit >= 8<<10 {
		t.Fatalf("max document = %d", limit)
	}
	if err := b.Publish(context.Background(), "tasks", NewExtractTask("J1", "a.pdf", make([]byte, limit))); err != nil {
		t.Fatalf("publish at limit: %v", err)
	}
	err := b.Publish(context.Background(), "tasks", NewExtractTask("J2", "b.pdf", make([]byte, 8<<10)))
	if !errors.Is(err, ErrTaskTooLarge) {
		t.Fatalf("publish over limit = %v, want ErrTaskTooLarge", err)
	}
	if n := b.Pending("tasks", "g"); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	if got := NewMemoryBroker(testLogger()).MaxDocumentBytes(); got != 0 {
		t.Fatalf("unlimited broker max document = %d", got)
	}
}
