package pool

import (
	"bytes"
	"sync"
)

// maxPooledSize 超过该容量的buffer不再放回池中，避免大快照长期占用内存
const maxPooledSize = 4 << 20

// BufferPool 字节缓冲池
var BufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuffer 从池中获取buffer
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer 将buffer放回池中
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledSize {
		return
	}
	BufferPool.Put(buf)
}
