package snapshot

import (
	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
)

// TopicOffsets 一次快照请求开始时的分区offset，计算后不再修改
type TopicOffsets map[int32]broker.PartitionOffsets

// NewTopicOffsets 由admin返回的分区offset构建
func NewTopicOffsets(partitions []broker.PartitionOffsets) TopicOffsets {
	offsets := make(TopicOffsets, len(partitions))
	for _, p := range partitions {
		offsets[p.Partition] = p
	}
	return offsets
}

// HighWaterMarks 返回分区到高水位的映射
func (t TopicOffsets) HighWaterMarks() map[int32]int64 {
	hwm := make(map[int32]int64, len(t))
	for p, o := range t {
		hwm[p] = o.End
	}
	return hwm
}

// MaxHighWaterMark 全部分区中最大的高水位，没有分区时为-1
func (t TopicOffsets) MaxHighWaterMark() int64 {
	max := int64(-1)
	for _, o := range t {
		if o.End > max {
			max = o.End
		}
	}
	return max
}

// Pending 仍有已保留消息的分区及其最后一条消息的offset
func (t TopicOffsets) Pending() map[int32]int64 {
	pending := make(map[int32]int64)
	for p, o := range t {
		if o.End > o.Start && o.End > 0 {
			pending[p] = o.End - 1
		}
	}
	return pending
}

// completion 判断会话是否已消费到快照终点
type completion interface {
	// observe 记录一条已投递的消息，返回是否已完成
	observe(partition int32, offset int64) bool
	// empty 快照终点为空，无需创建消费者
	empty() bool
}

func newCompletion(mode string, offsets TopicOffsets) completion {
	if mode == config.CompletionGlobal {
		return &globalCompletion{last: offsets.MaxHighWaterMark() - 1}
	}
	return &partitionCompletion{remaining: offsets.Pending()}
}

// globalCompletion 任意分区投递了offset等于全局最大高水位-1的消息即完成
// 多分区topic中高水位较低的分区可能在完成前未消费完，剩余数据依赖空闲超时
type globalCompletion struct {
	last int64
}

func (g *globalCompletion) observe(_ int32, offset int64) bool {
	return offset == g.last
}

func (g *globalCompletion) empty() bool {
	return g.last < 0
}

// partitionCompletion 每个有数据的分区都投递到各自高水位-1才完成
type partitionCompletion struct {
	remaining map[int32]int64
}

func (p *partitionCompletion) observe(partition int32, offset int64) bool {
	if last, ok := p.remaining[partition]; ok && offset >= last {
		delete(p.remaining, partition)
	}
	return len(p.remaining) == 0
}

func (p *partitionCompletion) empty() bool {
	return len(p.remaining) == 0
}
