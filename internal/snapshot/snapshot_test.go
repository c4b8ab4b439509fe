package snapshot

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/consumer"
	"github.com/kavka/kavka/pkg/errors"
)

// step 假消费者的一个投递动作
type step struct {
	delay time.Duration
	msg   *consumer.Message
	err   error
}

func msg(partition int32, offset int64) step {
	return step{msg: &consumer.Message{Topic: "t", Partition: partition, Offset: offset, Value: []byte("v")}}
}

func after(d time.Duration, s step) step {
	s.delay = d
	return s
}

// fakeConsumer 按脚本投递消息，Close后停止投递
type fakeConsumer struct {
	msgs   chan *consumer.Message
	errs   chan error
	done   chan struct{}
	paused atomic.Bool
	closed atomic.Bool
	once   sync.Once
}

func newFakeConsumer(steps []step) *fakeConsumer {
	c := &fakeConsumer{
		msgs: make(chan *consumer.Message, 100),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go func() {
		for _, s := range steps {
			if s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-c.done:
					return
				}
			}
			if c.paused.Load() {
				return
			}
			if s.err != nil {
				// 与FranzConsumer退出顺序一致：先写入错误，再关闭两个channel
				c.errs <- s.err
				close(c.msgs)
				close(c.errs)
				return
			}
			select {
			case c.msgs <- s.msg:
			case <-c.done:
				return
			}
		}
	}()
	return c
}

func (c *fakeConsumer) Start(context.Context) error        { return nil }
func (c *fakeConsumer) Messages() <-chan *consumer.Message { return c.msgs }
func (c *fakeConsumer) Errors() <-chan error               { return c.errs }
func (c *fakeConsumer) Pause()                             { c.paused.Store(true) }

func (c *fakeConsumer) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// fakeSubscriber 记录订阅并按topic返回脚本化的消费者
type fakeSubscriber struct {
	t       *testing.T
	mu      sync.Mutex
	scripts map[string][]step
	subs    []consumer.Subscription
	opened  []*fakeConsumer
	err     error
	forbid  bool
}

func (s *fakeSubscriber) Subscribe(_ context.Context, sub consumer.Subscription) (consumer.Consumer, error) {
	if s.forbid {
		s.t.Errorf("subscribe must not be called, got %+v", sub)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	if s.err != nil {
		return nil, s.err
	}
	c := newFakeConsumer(s.scripts[sub.Topic])
	s.opened = append(s.opened, c)
	return c, nil
}

// fakeOffsets 返回固定的分区offset
type fakeOffsets struct {
	partitions map[string][]broker.PartitionOffsets
	err        error
}

func (f *fakeOffsets) ListPartitionOffsets(_ context.Context, topic string) ([]broker.PartitionOffsets, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.partitions[topic], nil
}

func singlePartition(hwm int64) []broker.PartitionOffsets {
	return []broker.PartitionOffsets{{Partition: 0, Start: 0, End: hwm}}
}

func testConfig(idle time.Duration, completion string) config.SnapshotConfig {
	cfg := config.DefaultConfig().Snapshot
	cfg.IdleTimeoutMs = int(idle / time.Millisecond)
	cfg.Completion = completion
	return cfg
}

func offsetsOf(messages []consumer.Message) []int64 {
	out := make([]int64, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Offset)
	}
	return out
}

func TestEmptyTopicNeverSubscribes(t *testing.T) {
	cases := map[string][]broker.PartitionOffsets{
		"no partitions":     nil,
		"zero high water":   {{Partition: 0, End: 0}, {Partition: 1, End: 0}},
		"retention expired": {{Partition: 0, Start: 12, End: 12}},
	}

	for _, mode := range []string{config.CompletionPartition, config.CompletionGlobal} {
		for name, partitions := range cases {
			if mode == config.CompletionGlobal && name == "retention expired" {
				continue
			}
			t.Run(mode+"/"+name, func(t *testing.T) {
				sub := &fakeSubscriber{t: t, forbid: true}
				s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": partitions}}, sub, testConfig(time.Second, mode))

				snap, err := s.ConsumeSnapshot(context.Background(), "t")
				require.NoError(t, err)
				require.Equal(t, OutcomeEmpty, snap.Outcome)
				require.NotNil(t, snap.Messages)
				require.Empty(t, snap.Messages)
				require.Empty(t, sub.subs)
			})
		}
	}
}

func TestCompletesAtHighWaterMark(t *testing.T) {
	steps := []step{msg(0, 0), msg(0, 1), msg(0, 2), msg(0, 3), msg(0, 4), msg(0, 5), msg(0, 6)}
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(5)}}, sub, testConfig(5*time.Second, config.CompletionPartition))

	start := time.Now()
	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)

	require.Equal(t, OutcomeComplete, snap.Outcome)
	require.Equal(t, []int64{0, 1, 2, 3, 4}, offsetsOf(snap.Messages))

	require.Len(t, sub.opened, 1)
	require.True(t, sub.opened[0].paused.Load())
	require.True(t, sub.opened[0].closed.Load())

	require.Len(t, sub.subs, 1)
	require.True(t, sub.subs[0].FromBeginning)
	require.Equal(t, "t", sub.subs[0].Topic)
	require.Equal(t, snap.GroupID, sub.subs[0].GroupID)
	require.Contains(t, snap.GroupID, groupIDPrefix)
}

func TestIdleTimeoutWithoutMessages(t *testing.T) {
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(3)}}, sub, testConfig(50*time.Millisecond, config.CompletionPartition))

	start := time.Now()
	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, OutcomeTimeout, snap.Outcome)
	require.Empty(t, snap.Messages)
	require.True(t, sub.opened[0].closed.Load())
}

func TestIdleTimeoutReturnsPartialMessages(t *testing.T) {
	steps := []step{msg(0, 0), msg(0, 1)}
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(5)}}, sub, testConfig(50*time.Millisecond, config.CompletionPartition))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, OutcomeTimeout, snap.Outcome)
	require.Equal(t, []int64{0, 1}, offsetsOf(snap.Messages))
}

func TestEveryMessageResetsIdleTimer(t *testing.T) {
	idle := 150 * time.Millisecond
	interval := 60 * time.Millisecond

	var steps []step
	for i := int64(0); i < 8; i++ {
		steps = append(steps, after(interval, msg(0, i)))
	}
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(8)}}, sub, testConfig(idle, config.CompletionPartition))

	start := time.Now()
	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.Greater(t, time.Since(start), idle)
	require.Equal(t, OutcomeComplete, snap.Outcome)
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, offsetsOf(snap.Messages))
}

func TestOffsetDiscoveryErrorNeverSubscribes(t *testing.T) {
	refused := stderrors.New("connection refused")
	sub := &fakeSubscriber{t: t, forbid: true}
	s := NewSnapshotter(&fakeOffsets{err: refused}, sub, testConfig(time.Second, config.CompletionPartition))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.Nil(t, snap)
	require.ErrorIs(t, err, refused)
	require.Equal(t, errors.ErrCodeKafkaTransport, errors.CodeOf(err))
	require.Equal(t, "connection refused", errors.Cause(err))
	require.Empty(t, sub.subs)
}

func TestSubscribeErrorIsReported(t *testing.T) {
	authFailed := stderrors.New("SASL authentication failed")
	sub := &fakeSubscriber{t: t, err: authFailed}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(3)}}, sub, testConfig(time.Second, config.CompletionPartition))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.Nil(t, snap)
	require.ErrorIs(t, err, authFailed)
}

func TestTransportErrorDiscardsPartialMessages(t *testing.T) {
	broken := stderrors.New("broker connection reset")
	steps := []step{msg(0, 0), msg(0, 1), after(10*time.Millisecond, step{err: broken})}
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(5)}}, sub, testConfig(time.Second, config.CompletionPartition))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.Nil(t, snap)
	require.ErrorIs(t, err, broken)
	require.True(t, sub.opened[0].closed.Load())
}

func TestTransportErrorSurvivesChannelClose(t *testing.T) {
	authFailed := stderrors.New("SASL_AUTHENTICATION_FAILED: bad creds")
	for i := 0; i < 200; i++ {
		sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": {msg(0, 0), step{err: authFailed}}}}
		s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(5)}}, sub, testConfig(time.Second, config.CompletionPartition))

		snap, err := s.ConsumeSnapshot(context.Background(), "t")
		require.Nil(t, snap)
		require.ErrorIs(t, err, authFailed)
		require.Equal(t, "SASL_AUTHENTICATION_FAILED: bad creds", errors.Cause(err))
	}
}

func TestConsumerStoppedWithoutError(t *testing.T) {
	c := &fakeConsumer{
		msgs: make(chan *consumer.Message),
		errs: make(chan error),
		done: make(chan struct{}),
	}
	close(c.msgs)
	s := NewSnapshotter(&fakeOffsets{}, &fakeSubscriber{t: t}, testConfig(time.Second, config.CompletionPartition))

	_, outcome, err := s.drain(context.Background(), c, &partitionCompletion{remaining: map[int32]int64{0: 4}})
	require.Equal(t, OutcomeError, outcome)
	require.True(t, errors.HasCode(err, errors.ErrCodeKafkaTransport))
	require.Equal(t, "consumer stopped before snapshot completed", errors.Cause(err))
}

func TestCancelledContextIsAnError(t *testing.T) {
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": singlePartition(3)}}, sub, testConfig(5*time.Second, config.CompletionPartition))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	snap, err := s.ConsumeSnapshot(ctx, "t")
	require.Nil(t, snap)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, sub.opened[0].closed.Load())
}

func TestGlobalCompletionStopsOnAnyPartition(t *testing.T) {
	partitions := []broker.PartitionOffsets{{Partition: 0, End: 3}, {Partition: 1, End: 5}}
	steps := []step{msg(0, 0), msg(1, 0), msg(1, 1), msg(0, 1), msg(1, 2), msg(1, 3), msg(1, 4), msg(0, 2)}

	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": partitions}}, sub, testConfig(5*time.Second, config.CompletionGlobal))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, OutcomeComplete, snap.Outcome)
	// 分区0的offset 2还未投递就已完成
	require.Len(t, snap.Messages, 7)
}

func TestPartitionCompletionWaitsForEveryPartition(t *testing.T) {
	partitions := []broker.PartitionOffsets{{Partition: 0, End: 3}, {Partition: 1, End: 5}, {Partition: 2, Start: 9, End: 9}}
	steps := []step{msg(0, 0), msg(1, 0), msg(1, 1), msg(0, 1), msg(1, 2), msg(1, 3), msg(1, 4), msg(0, 2)}

	sub := &fakeSubscriber{t: t, scripts: map[string][]step{"t": steps}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{"t": partitions}}, sub, testConfig(5*time.Second, config.CompletionPartition))

	snap, err := s.ConsumeSnapshot(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, OutcomeComplete, snap.Outcome)
	require.Len(t, snap.Messages, 8)
	require.Equal(t, consumer.Message{Topic: "t", Partition: 0, Offset: 2, Value: []byte("v")}, snap.Messages[7])
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	sub := &fakeSubscriber{t: t, scripts: map[string][]step{
		"a": {after(20*time.Millisecond, msg(0, 0)), after(20*time.Millisecond, msg(0, 1))},
		"b": {msg(0, 0), after(30*time.Millisecond, msg(0, 1)), msg(0, 2)},
	}}
	s := NewSnapshotter(&fakeOffsets{partitions: map[string][]broker.PartitionOffsets{
		"a": singlePartition(2),
		"b": singlePartition(3),
	}}, sub, testConfig(time.Second, config.CompletionPartition))

	var wg sync.WaitGroup
	results := make(map[string]*Snapshot)
	var mu sync.Mutex
	for _, topic := range []string{"a", "b"} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			snap, err := s.ConsumeSnapshot(context.Background(), topic)
			if err != nil {
				t.Errorf("topic %s: %v", topic, err)
				return
			}
			mu.Lock()
			results[topic] = snap
			mu.Unlock()
		}(topic)
	}
	wg.Wait()

	require.Len(t, results, 2)
	require.Equal(t, []int64{0, 1}, offsetsOf(results["a"].Messages))
	require.Equal(t, []int64{0, 1, 2}, offsetsOf(results["b"].Messages))
	require.NotEqual(t, results["a"].GroupID, results["b"].GroupID)

	require.Len(t, sub.opened, 2)
	for _, c := range sub.opened {
		require.True(t, c.closed.Load())
	}
}

func TestNewGroupIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewGroupID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
