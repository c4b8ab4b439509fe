package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/consumer"
	"github.com/kavka/kavka/internal/metrics"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/logger"
)

// Outcome 快照会话的结束方式
type Outcome string

const (
	// OutcomeEmpty topic没有可消费的消息，未创建消费者
	OutcomeEmpty Outcome = "empty"
	// OutcomeComplete 消费到快照终点
	OutcomeComplete Outcome = "complete"
	// OutcomeTimeout 空闲超时，返回已累积的消息
	OutcomeTimeout Outcome = "timeout"
	// OutcomeError 传输层错误，不返回部分数据
	OutcomeError Outcome = "error"
)

// groupIDPrefix 临时消费组ID前缀
const groupIDPrefix = "kavka-snapshot-"

// OffsetLister 查询topic分区offset
type OffsetLister interface {
	ListPartitionOffsets(ctx context.Context, topic string) ([]broker.PartitionOffsets, error)
}

// Subscriber 打开一个已启动的只读消费者
type Subscriber interface {
	Subscribe(ctx context.Context, sub consumer.Subscription) (consumer.Consumer, error)
}

// Snapshot 一次快照消费的结果
type Snapshot struct {
	Topic    string
	GroupID  string
	Offsets  TopicOffsets
	Messages []consumer.Message
	Outcome  Outcome
	Duration time.Duration
}

// Snapshotter 有界快照消费者：消费到请求开始时的高水位或空闲超时为止
type Snapshotter struct {
	offsets    OffsetLister
	subscriber Subscriber
	cfg        config.SnapshotConfig
	newGroupID func() string
}

// NewSnapshotter 创建快照消费者
func NewSnapshotter(offsets OffsetLister, subscriber Subscriber, cfg config.SnapshotConfig) *Snapshotter {
	return &Snapshotter{
		offsets:    offsets,
		subscriber: subscriber,
		cfg:        cfg,
		newGroupID: NewGroupID,
	}
}

// NewGroupID 生成进程内唯一的临时消费组ID
func NewGroupID() string {
	return groupIDPrefix + uuid.NewString()
}

// FetchHighWaterMarks 查询topic全部分区的offset
// 出错时直接返回，不会创建消费者
func (s *Snapshotter) FetchHighWaterMarks(ctx context.Context, topic string) (TopicOffsets, error) {
	partitions, err := s.offsets.ListPartitionOffsets(ctx, topic)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to fetch topic offsets", err)
	}
	return NewTopicOffsets(partitions), nil
}

// ConsumeSnapshot 从头消费topic直到请求开始时的高水位，或空闲超时
func (s *Snapshotter) ConsumeSnapshot(ctx context.Context, topic string) (*Snapshot, error) {
	start := time.Now()

	offsets, err := s.FetchHighWaterMarks(ctx, topic)
	if err != nil {
		record(topic, OutcomeError, start, nil)
		return nil, err
	}

	target := newCompletion(s.cfg.Completion, offsets)
	if target.empty() {
		logger.Debug("topic is empty, skip consuming", zap.String("topic", topic))
		record(topic, OutcomeEmpty, start, nil)
		return &Snapshot{
			Topic:    topic,
			Offsets:  offsets,
			Messages: []consumer.Message{},
			Outcome:  OutcomeEmpty,
			Duration: time.Since(start),
		}, nil
	}

	groupID := s.newGroupID()
	log := logger.With(zap.String("topic", topic), zap.String("group_id", groupID))
	log.Info("snapshot session started",
		zap.Int64("max_high_water_mark", offsets.MaxHighWaterMark()),
		zap.Any("high_water_marks", offsets.HighWaterMarks()),
		zap.Int("partitions", len(offsets)),
		zap.String("completion", s.cfg.Completion),
	)

	c, err := s.subscriber.Subscribe(ctx, consumer.Subscription{
		Topic:         topic,
		GroupID:       groupID,
		FromBeginning: true,
	})
	if err != nil {
		record(topic, OutcomeError, start, nil)
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to subscribe", err)
	}

	metrics.SnapshotActive.Inc()
	messages, outcome, err := s.drain(ctx, c, target)
	metrics.SnapshotActive.Dec()

	// 返回前停止拉取并释放连接
	c.Pause()
	if closeErr := c.Close(); closeErr != nil {
		log.Warn("failed to close snapshot consumer", zap.Error(closeErr))
	}

	if err != nil {
		log.Warn("snapshot session failed", zap.Error(err), zap.Int("delivered", len(messages)))
		record(topic, OutcomeError, start, nil)
		return nil, err
	}

	record(topic, outcome, start, messages)
	log.Info("snapshot session finished",
		zap.String("outcome", string(outcome)),
		zap.Int("messages", len(messages)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Snapshot{
		Topic:    topic,
		GroupID:  groupID,
		Offsets:  offsets,
		Messages: messages,
		Outcome:  outcome,
		Duration: time.Since(start),
	}, nil
}

// drain 累积消息直到完成、空闲超时、传输错误或调用方取消
// 累积器与定时器只由当前goroutine访问
func (s *Snapshotter) drain(ctx context.Context, c consumer.Consumer, target completion) ([]consumer.Message, Outcome, error) {
	idleTimeout := s.cfg.IdleTimeout()
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	messages := []consumer.Message{}
	errs := c.Errors()

	for {
		select {
		case <-ctx.Done():
			return messages, OutcomeError, errors.Wrap(errors.ErrCodeKafkaTransport, "snapshot cancelled", ctx.Err())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return messages, OutcomeError, err

		case msg, ok := <-c.Messages():
			if !ok {
				// 消费循环先写入错误再关闭channel
				select {
				case err, ok := <-errs:
					if ok {
						return messages, OutcomeError, err
					}
				default:
				}
				return messages, OutcomeError, errors.New(errors.ErrCodeKafkaTransport, "consumer stopped before snapshot completed")
			}
			messages = append(messages, *msg)
			if target.observe(msg.Partition, msg.Offset) {
				return messages, OutcomeComplete, nil
			}
			resetTimer(idle, idleTimeout)

		case <-idle.C:
			return messages, OutcomeTimeout, nil
		}
	}
}

// resetTimer 重置空闲定时器
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// record 记录快照会话指标
func record(topic string, outcome Outcome, start time.Time, messages []consumer.Message) {
	metrics.SnapshotSessions.WithLabelValues(string(outcome)).Inc()
	metrics.SnapshotDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())
	if len(messages) == 0 {
		return
	}
	var size int
	for _, m := range messages {
		size += len(m.Value)
	}
	metrics.SnapshotMessages.WithLabelValues(topic).Add(float64(len(messages)))
	metrics.SnapshotBytes.WithLabelValues(topic).Add(float64(size))
}
