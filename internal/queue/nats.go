package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	drainTimeout = 10 * time.Second
	ackTimeout   = 5 * time.Second
)

// NATSBroker maps topics onto JetStream streams. A topic's partitions are the
// subjects <topic>.<n>. A consumer group owns one durable consumer per
// partition, each allowing a single unacknowledged message, so the server
// hands a partition's tasks to the group strictly one after another.
type NATSBroker struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	log    *slog.Logger
	opts   options
	closed chan struct{}

	mu      sync.Mutex
	streams map[string]jetstream.Stream
}

// ConnectNATS dials the server and keeps reconnecting in the background.
func ConnectNATS(url string, logger *slog.Logger, opts ...Option) (*NATSBroker, error) {
	closed := make(chan struct{})
	var closeOnce sync.Once
	nc, err := nats.Connect(url,
		nats.Name("parivyaya"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			closeOnce.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	logger.Info("connected to nats", "url", nc.ConnectedUrl(), "max_payload", nc.MaxPayload())
	return &NATSBroker{
		nc:      nc,
		js:      js,
		log:     logger,
		opts:    newOptions(opts),
		closed:  closed,
		streams: make(map[string]jetstream.Stream),
	}, nil
}

var nameReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

func streamName(topic string) string {
	return nameReplacer.Replace(topic)
}

func consumerName(group string, partition int) string {
	return nameReplacer.Replace(group) + "-p" + strconv.Itoa(partition)
}

func subject(topic string, partition int) string {
	return topic + "." + strconv.Itoa(partition)
}

func (b *NATSBroker) stream(ctx context.Context, topic string) (jetstream.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.streams[topic]; ok {
		return s, nil
	}
	s, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(topic),
		Subjects:  []string{topic + ".*"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", topic, err)
	}
	b.streams[topic] = s
	return s, nil
}

// payloadLimit is the server's max_payload, lowered by WithMaxPayload.
func (b *NATSBroker) payloadLimit() int {
	limit := int(b.nc.MaxPayload())
	if b.opts.maxPayload > 0 && (limit <= 0 || b.opts.maxPayload < limit) {
		limit = b.opts.maxPayload
	}
	return limit
}

func (b *NATSBroker) MaxDocumentBytes() int {
	return MaxDocumentFor(b.payloadLimit())
}

func (b *NATSBroker) Publish(ctx context.Context, topic string, task Task) error {
	data, err := EncodeTask(task)
	if err != nil {
		return err
	}
	if limit := b.payloadLimit(); limit > 0 && len(data) > limit {
		return fmt.Errorf("%w: task %s is %d bytes, limit %d", ErrTaskTooLarge, task.ID, len(data), limit)
	}
	if _, err := b.stream(ctx, topic); err != nil {
		return err
	}
	p := Partition(task.ID, b.opts.partitions)
	ack, err := b.js.Publish(ctx, subject(topic, p), data)
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return ErrClosed
		}
		return fmt.Errorf("publish task %s: %w", task.ID, err)
	}
	b.log.Debug("task published", "topic", topic, "task_id", task.ID, "partition", p, "offset", ack.Sequence)
	return nil
}

// Subscribe joins group on topic, pulling from every partition's consumer.
func (b *NATSBroker) Subscribe(ctx context.Context, topic, group string) (Subscription, error) {
	s, err := b.stream(ctx, topic)
	if err != nil {
		return nil, err
	}

	sub := &natsSubscription{
		b:     b,
		topic: topic,
		group: group,
		msgs:  make(chan jetstream.Msg),
		done:  make(chan struct{}),
		held:  make(map[jetstream.Msg]func()),
	}
	for p := 0; p < b.opts.partitions; p++ {
		cons, err := s.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:       consumerName(group, p),
			FilterSubject: subject(topic, p),
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverAllPolicy,
			AckWait:       b.opts.ackWait,
			MaxAckPending: 1,
		})
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("ensure consumer %s/%s: %w", topic, consumerName(group, p), err)
		}
		it, err := cons.Messages(jetstream.PullMaxMessages(b.opts.fetchBatch))
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("pull %s/%s: %w", topic, consumerName(group, p), err)
		}
		sub.its = append(sub.its, it)
	}

	sub.wg.Add(len(sub.its))
	for _, it := range sub.its {
		go sub.pump(it)
	}
	go func() {
		sub.wg.Wait()
		close(sub.msgs)
	}()
	return sub, nil
}

// Close drains the connection and waits until the server has seen every
// pending ack.
func (b *NATSBroker) Close() error {
	if b.nc == nil || b.nc.IsClosed() {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	select {
	case <-b.closed:
		b.log.Info("nats connection drained")
		return nil
	case <-time.After(drainTimeout + time.Second):
		b.nc.Close()
		return fmt.Errorf("drain nats: timed out after %s", drainTimeout)
	}
}

type natsSubscription struct {
	b     *NATSBroker
	topic string
	group string
	its   []jetstream.MessagesContext

	msgs chan jetstream.Msg
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu   sync.Mutex
	held map[jetstream.Msg]func() // handed to the caller, not yet acked
	err  error
}

// pump moves messages off one partition's iterator so Next can honor its
// context. Anything read after Close is returned to the group.
func (s *natsSubscription) pump(it jetstream.MessagesContext) {
	defer s.wg.Done()
	for {
		msg, err := it.Next()
		if err != nil {
			if !errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				s.mu.Lock()
				if s.err == nil {
					s.err = err
				}
				s.mu.Unlock()
				s.b.log.Error("nats pull failed", "topic", s.topic, "group", s.group, "error", err)
				_ = s.Close()
			}
			return
		}
		select {
		case <-s.done:
			_ = msg.Nak()
			continue
		default:
		}
		select {
		case s.msgs <- msg:
		case <-s.done:
			_ = msg.Nak()
		}
	}
}

func (s *natsSubscription) Next(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var msg jetstream.Msg
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, s.closeErr()
	case m, ok := <-s.msgs:
		if !ok {
			return nil, s.closeErr()
		}
		msg = m
	}

	s.mu.Lock()
	if s.isDone() {
		s.mu.Unlock()
		_ = msg.Nak()
		return nil, s.closeErr()
	}
	s.held[msg] = s.keepAlive(msg)
	s.mu.Unlock()

	d := &Delivery{Data: msg.Data(), Topic: s.topic, Partition: partitionOf(msg.Subject())}
	if md, err := msg.Metadata(); err == nil {
		d.Offset = md.Sequence.Stream
		d.Redelivered = md.NumDelivered > 1
	}
	// The partition stays with this delivery until the ack reaches the
	// server, whatever the commit policy.
	d.ack = func() error {
		s.mu.Lock()
		stop, ok := s.held[msg]
		delete(s.held, msg)
		s.mu.Unlock()
		if ok {
			stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()
		if err := msg.DoubleAck(ctx); err != nil {
			return fmt.Errorf("ack %s offset %d: %w", msg.Subject(), d.Offset, err)
		}
		return nil
	}
	return d, nil
}

// keepAlive resets the ack deadline while msg is processed so a long
// extraction is not redelivered to another member.
func (s *natsSubscription) keepAlive(msg jetstream.Msg) func() {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(s.b.opts.ackWait / 2)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := msg.InProgress(); err != nil {
					s.b.log.Warn("extending ack deadline failed", "subject", msg.Subject(), "error", err)
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func (s *natsSubscription) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *natsSubscription) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return ErrClosed
}

// Close stops pulling and gives up every partition. Under CommitAfterProcess
// an unacked delivery is negatively acknowledged so the group sees it again
// right away; under CommitOnReceive it counts as consumed and is terminated.
func (s *natsSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		for _, it := range s.its {
			it.Drain()
		}
		s.mu.Lock()
		for msg, stop := range s.held {
			stop()
			if s.b.opts.policy == CommitAfterProcess {
				_ = msg.Nak()
				s.b.log.Warn("returning unacked task to the group", "topic", s.topic, "group", s.group, "subject", msg.Subject())
			} else {
				_ = msg.Term()
			}
		}
		s.held = map[jetstream.Msg]func(){}
		s.mu.Unlock()
	})
	return nil
}

func partitionOf(subject string) int {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 {
		return 0
	}
	p, err := strconv.Atoi(subject[i+1:])
	if err != nil {
		return 0
	}
	return p
}
