package utils

import "sync"

// RingBuffer 固定容量的环形缓冲区，满了之后覆盖最旧的元素
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	data  []T
	head  int // 最旧元素的位置
	count int
}

// NewRingBuffer 创建环形缓冲区
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 64
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push 追加一个元素，满了覆盖最旧的
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	tail := (rb.head + rb.count) % len(rb.data)
	rb.data[tail] = item
	if rb.count < len(rb.data) {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % len(rb.data)
	}
}

// GetAll 按时间顺序（从旧到新）返回所有元素的副本
func (rb *RingBuffer[T]) GetAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.copyLast(rb.count)
}

// GetLast 返回最近的 n 个元素（从旧到新）
func (rb *RingBuffer[T]) GetLast(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	return rb.copyLast(n)
}

func (rb *RingBuffer[T]) copyLast(n int) []T {
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := rb.head + rb.count - n
	for i := 0; i < n; i++ {
		out[i] = rb.data[(start+i)%len(rb.data)]
	}
	return out
}

// Len 当前元素数量
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Clear 清空缓冲区
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.head = 0
	rb.count = 0
}
