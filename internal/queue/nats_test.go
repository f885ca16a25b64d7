package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
)

// runJetStream starts an embedded JetStream server for one test.
func runJetStream(t *testing.T, maxPayload int32) string {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	if maxPayload > 0 {
		opts.MaxPayload = maxPayload
	}
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func connect(t *testing.T, url string, opts ...Option) *NATSBroker {
	t.Helper()
	b, err := ConnectNATS(url, testLogger(), opts...)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func subscribe(t *testing.T, b Subscriber, group string) Subscription {
	t.Helper()
	sub, err := b.Subscribe(context.Background(), "tasks", group)
	if err != nil {
		t.Fatalf("subscribe %s: %v", group, err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func next(t *testing.T, sub Subscription) *Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	return d
}

func taskID(t *testing.T, d *Delivery) string {
	t.Helper()
	task, err := DecodeTask(d.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return task.ID
}

func expectNothing(t *testing.T, sub Subscription, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if d, err := sub.Next(ctx); err == nil {
		t.Fatalf("unexpected delivery %s", taskID(t, d))
	}
}

func publishN(t *testing.T, b Publisher, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := b.Publish(context.Background(), "tasks", Task{ID: fmt.Sprintf("J%d", i), Kind: KindExtractRecords}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
}

func TestNATSPublishIsStoredBeforeReturning(t *testing.T) {
	b := connect(t, runJetStream(t, 0), WithPartitions(2))
	publishN(t, b, 3)

	s, err := b.js.Stream(context.Background(), streamName("tasks"))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	info, err := s.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.State.Msgs != 3 {
		t.Fatalf("stored = %d, want 3", info.State.Msgs)
	}

	d := next(t, subscribe(t, b, "g"))
	want := Partition(taskID(t, d), 2)
	if d.Partition != want || d.Offset == 0 || d.Redelivered {
		t.Fatalf("delivery = partition %d offset %d redelivered %v, want partition %d", d.Partition, d.Offset, d.Redelivered, want)
	}
}

func TestNATSGroupOffsetSurvivesResubscribe(t *testing.T) {
	b := connect(t, runJetStream(t, 0), WithPartitions(1), WithCommitPolicy(CommitAfterProcess))
	publishN(t, b, 3)

	first := subscribe(t, b, "g")
	d := next(t, first)
	if id := taskID(t, d); id != "J0" {
		t.Fatalf("first = %s", id)
	}
	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	_ = first.Close()

	again := subscribe(t, b, "g")
	if id := taskID(t, next(t, again)); id != "J1" {
		t.Fatalf("after resubscribe = %s, want J1", id)
	}

	other := subscribe(t, b, "audit")
	if id := taskID(t, next(t, other)); id != "J0" {
		t.Fatalf("other group = %s, want J0", id)
	}
}

func TestNATSPartitionOrderAcrossMembers(t *testing.T) {
	for _, policy := range []CommitPolicy{CommitOnReceive, CommitAfterProcess} {
		t.Run(policy.String(), func(t *testing.T) {
			b := connect(t, runJetStream(t, 0), WithPartitions(1), WithFetchBatch(4), WithCommitPolicy(policy))
			const n = 10
			publishN(t, b, n)

			var (
				mu       sync.Mutex
				order    []string
				inFlight atomic.Int32
				maxSeen  atomic.Int32
				wg       sync.WaitGroup
			)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			for m := 0; m < 2; m++ {
				sub := subscribe(t, b, "g")
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						d, err := sub.Next(ctx)
						if err != nil {
							return
						}
						cur := inFlight.Add(1)
						for {
							prev := maxSeen.Load()
							if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
								break
							}
						}
						task, _ := DecodeTask(d.Data)
						mu.Lock()
						order = append(order, task.ID)
						done := len(order) == n
						mu.Unlock()
						time.Sleep(50 * time.Millisecond)
						inFlight.Add(-1)
						if err := d.Ack(); err != nil {
							t.Errorf("ack: %v", err)
						}
						if done {
							cancel()
						}
					}
				}()
			}
			wg.Wait()

			if len(order) != n {
				t.Fatalf("received %d of %d tasks: %v", len(order), n, order)
			}
			for i, id := range order {
				if id != fmt.Sprintf("J%d", i) {
					t.Fatalf("order = %v", order)
				}
			}
			if got := maxSeen.Load(); got != 1 {
				t.Fatalf("max in-flight deliveries from one partition = %d, want 1", got)
			}
		})
	}
}

func TestNATSCloseReturnsUnackedUnderCommitAfterProcess(t *testing.T) {
	b := connect(t, runJetStream(t, 0), WithPartitions(1), WithCommitPolicy(CommitAfterProcess))
	publishN(t, b, 2)

	a := subscribe(t, b, "g")
	if id := taskID(t, next(t, a)); id != "J0" {
		t.Fatalf("first = %s", id)
	}
	_ = a.Close()

	c := subscribe(t, b, "g")
	d := next(t, c)
	if id := taskID(t, d); id != "J0" || !d.Redelivered {
		t.Fatalf("after close = %s redelivered=%v, want J0 redelivered", id, d.Redelivered)
	}
}

func TestNATSCloseDropsUnackedUnderCommitOnReceive(t *testing.T) {
	b := connect(t, runJetStream(t, 0), WithPartitions(1))
	publishN(t, b, 2)

	a := subscribe(t, b, "g")
	if id := taskID(t, next(t, a)); id != "J0" {
		t.Fatalf("first = %s", id)
	}
	_ = a.Close()

	c := subscribe(t, b, "g")
	if id := taskID(t, next(t, c)); id != "J1" {
		t.Fatalf("after close = %s, want J1", id)
	}
}

func TestNATSNextHonorsContextAndClose(t *testing.T) {
	b := connect(t, runJetStream(t, 0), WithPartitions(2))
	sub := subscribe(t, b, "g")
	expectNothing(t, sub, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled next = %v", err)
	}
	_ = sub.Close()
	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("next after close = %v, want ErrClosed", err)
	}
}

func TestNATSRejectsTaskOverPayloadLimit(t *testing.T) {
	const serverMax = 64 << 10
	b := connect(t, runJetStream(t, serverMax), WithPartitions(1))

	limit := b.MaxDocumentBytes()
	if limit <= 0 || limit >= serverMax {
		t.Fatalf("max document = %d for server max payload %d", limit, serverMax)
	}

	fits := NewExtractTask("J1", "a.pdf", make([]byte, limit))
	if err := b.Publish(context.Background(), "tasks", fits); err != nil {
		t.Fatalf("publish at limit: %v", err)
	}
	big := NewExtractTask("J2", "b.pdf", make([]byte, serverMax))
	err := b.Publish(context.Background(), "tasks", big)
	if !errors.Is(err, ErrTaskTooLarge) {
		t.Fatalf("publish over limit = %v, want ErrTaskTooLarge", err)
	}

	lowered := connect(t, runJetStream(t, serverMax), WithMaxPayload(16<<10))
	if got := lowered.MaxDocumentBytes(); got >= limit {
		t.Fatalf("lowered max document = %d, want below %d", got, limit)
	}
}

func TestNATSCloseFlushesAcks(t *testing.T) {
	url := runJetStream(t, 0)
	b, err := ConnectNATS(url, testLogger(), WithPartitions(1), WithCommitPolicy(CommitAfterProcess))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	publishN(t, b, 2)
	sub, err := b.Subscribe(context.Background(), "tasks", "g")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	d := next(t, sub)
	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	_ = sub.Close()
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !b.nc.IsClosed() {
		t.Fatal("connection still open after Close")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	restarted := connect(t, url, WithPartitions(1), WithCommitPolicy(CommitAfterProcess))
	if id := taskID(t, next(t, subscribe(t, restarted, "g"))); id != "J1" {
		t.Fatalf("after restart = %s, want J1", id)
	}
}

func TestConsumerNames(t *testing.T) {
	if got := consumerName("extract.workers", 3); got != "extract_workers-p3" {
		t.Fatalf("consumer name = %q", got)
	}
	if got := subject("tasks", 2); got != "tasks.2" || partitionOf(got) != 2 {
		t.Fatalf("subject = %q", got)
	}
	if strings.ContainsAny(streamName("a.b*c>d e"), ".*> ") {
		t.Fatalf("stream name = %q", streamName("a.b*c>d e"))
	}
}
