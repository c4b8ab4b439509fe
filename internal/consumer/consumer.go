package consumer

import (
	"context"
)

// Message Kafka消息
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Subscription 订阅参数
type Subscription struct {
	Topic string
	// GroupID 由调用方生成的临时消费组ID，不复用历史提交
	GroupID       string
	FromBeginning bool
}

// Consumer 只读Kafka消费者接口，从不提交offset
type Consumer interface {
	Start(ctx context.Context) error
	// Messages 按投递顺序返回消息，Close后关闭
	Messages() <-chan *Message
	// Errors 传输层错误，Close后关闭
	Errors() <-chan error
	// Pause 停止继续拉取
	Pause()
	Close() error
}
