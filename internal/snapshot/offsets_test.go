package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/config"
)

func TestTopicOffsets(t *testing.T) {
	offsets := NewTopicOffsets([]broker.PartitionOffsets{
		{Partition: 0, Start: 0, End: 10},
		{Partition: 1, Start: 7, End: 7},
		{Partition: 2, Start: 2, End: 4},
	})

	require.Equal(t, int64(10), offsets.MaxHighWaterMark())
	require.Equal(t, map[int32]int64{0: 10, 1: 7, 2: 4}, offsets.HighWaterMarks())
	require.Equal(t, map[int32]int64{0: 9, 2: 3}, offsets.Pending())

	require.Equal(t, int64(-1), NewTopicOffsets(nil).MaxHighWaterMark())
}

func TestGlobalCompletion(t *testing.T) {
	offsets := NewTopicOffsets([]broker.PartitionOffsets{
		{Partition: 0, End: 3},
		{Partition: 1, End: 5},
	})
	c := newCompletion(config.CompletionGlobal, offsets)
	require.False(t, c.empty())
	require.False(t, c.observe(0, 2))
	require.True(t, c.observe(1, 4))

	require.True(t, newCompletion(config.CompletionGlobal, NewTopicOffsets(nil)).empty())
	require.True(t, newCompletion(config.CompletionGlobal, NewTopicOffsets([]broker.PartitionOffsets{{Partition: 0}})).empty())
}

func TestPartitionCompletion(t *testing.T) {
	offsets := NewTopicOffsets([]broker.PartitionOffsets{
		{Partition: 0, End: 3},
		{Partition: 1, End: 5},
		{Partition: 2, Start: 4, End: 4},
	})
	c := newCompletion(config.CompletionPartition, offsets)
	require.False(t, c.empty())
	require.False(t, c.observe(1, 4))
	require.False(t, c.observe(0, 1))
	require.True(t, c.observe(0, 2))

	require.True(t, newCompletion(config.CompletionPartition, NewTopicOffsets([]broker.PartitionOffsets{{Partition: 0, Start: 4, End: 4}})).empty())
}
