package consumer

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/internal/metrics"
	"github.com/kavka/kavka/pkg/errors"
	"github.com/kavka/kavka/pkg/logger"
)

// FranzConsumer franz-go消费者实现
type FranzConsumer struct {
	sub     Subscription
	client  *kgo.Client
	msgChan chan *Message
	errChan chan error

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewFranzConsumer 创建franz-go消费者
func NewFranzConsumer(conn config.ConnectionConfig, kcfg config.KafkaConfig, scfg config.SnapshotConfig, sub Subscription) (*FranzConsumer, error) {
	if sub.GroupID == "" {
		return nil, errors.New(errors.ErrCodeKafkaTransport, "group id is required")
	}

	opts, err := broker.ClientOptions(conn, kcfg)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		kgo.ConsumerGroup(sub.GroupID),
		kgo.ConsumeTopics(sub.Topic),
		kgo.FetchMaxBytes(int32(scfg.FetchMaxBytes)),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(), // 只读，不提交offset
	)

	// 设置消费起始位置
	if sub.FromBeginning {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	} else {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeKafkaTransport, "failed to create kafka client", err)
	}

	logger.Debug("kafka consumer created",
		zap.String("connection", conn.ID),
		zap.String("topic", sub.Topic),
		zap.String("group_id", sub.GroupID),
	)

	return &FranzConsumer{
		sub:     sub,
		client:  client,
		msgChan: make(chan *Message, 1000),
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}, nil
}

// Start 启动消费
func (c *FranzConsumer) Start(ctx context.Context) error {
	// 测试连接
	if err := c.client.Ping(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeKafkaTransport, "failed to ping kafka", err)
	}

	c.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.consumeLoop(loopCtx)
	})

	return nil
}

// consumeLoop 消费循环，退出时关闭消息与错误channel
func (c *FranzConsumer) consumeLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.errChan)
	defer close(c.msgChan)

	for {
		if ctx.Err() != nil {
			return
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		// 处理错误，退出循环后由调用方关闭
		for _, fe := range fetches.Errors() {
			if stderrors.Is(fe.Err, context.Canceled) || stderrors.Is(fe.Err, kgo.ErrClientClosed) {
				return
			}
			metrics.KafkaConsumeErrors.WithLabelValues(c.sub.Topic).Inc()
			logger.Warn("fetch error",
				zap.String("topic", fe.Topic),
				zap.Int32("partition", fe.Partition),
				zap.Error(fe.Err),
			)
			select {
			case c.errChan <- errors.Wrap(errors.ErrCodeKafkaTransport, "failed to consume topic "+c.sub.Topic, fe.Err):
			default:
			}
			return
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
			}

			select {
			case c.msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Messages 返回消息channel
func (c *FranzConsumer) Messages() <-chan *Message {
	return c.msgChan
}

// Errors 返回错误channel
func (c *FranzConsumer) Errors() <-chan error {
	return c.errChan
}

// Pause 暂停拉取
func (c *FranzConsumer) Pause() {
	c.client.PauseFetchTopics(c.sub.Topic)
}

// Close 关闭消费者，等待消费循环退出后释放连接
func (c *FranzConsumer) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		} else {
			close(c.msgChan)
			close(c.errChan)
		}
		c.client.Close()
		logger.Debug("kafka consumer closed",
			zap.String("topic", c.sub.Topic),
			zap.String("group_id", c.sub.GroupID),
		)
	})
	return nil
}

// Factory 为一个连接创建快照消费者
type Factory struct {
	conn     config.ConnectionConfig
	kafka    config.KafkaConfig
	snapshot config.SnapshotConfig
}

// NewFactory 创建消费者工厂
func NewFactory(conn config.ConnectionConfig, kcfg config.KafkaConfig, scfg config.SnapshotConfig) *Factory {
	return &Factory{conn: conn, kafka: kcfg, snapshot: scfg}
}

// Subscribe 创建并启动消费者，启动失败时释放连接
func (f *Factory) Subscribe(ctx context.Context, sub Subscription) (Consumer, error) {
	c, err := NewFranzConsumer(f.conn, f.kafka, f.snapshot, sub)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
