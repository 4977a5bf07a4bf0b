// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"sync"
)

// SampleBuffer is an unbounded FIFO of submitted samples with one consumer.
// Append never blocks; the consumer waits on Ready and takes everything
// queued with Drain. Every accepted sample is returned by exactly one Drain.
type SampleBuffer struct {
	mu       sync.Mutex
	queue    []Sample
	appended int
	closed   bool
	notify   chan struct{}
}

// NewSampleBuffer returns an empty, open buffer
func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{notify: make(chan struct{}, 1)}
}

// Append queues samples in order and returns how many were accepted, which
// is zero once the buffer is closed.
func (b *SampleBuffer) Append(samples []Sample) int {
	if len(samples) == 0 {
		return 0
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	b.queue = append(b.queue, samples...)
	b.appended += len(samples)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return len(samples)
}

// Drain removes and returns every queued sample
func (b *SampleBuffer) Drain() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.queue
	b.queue = nil
	return out
}

// Ready receives a value after an Append. One signal may cover many appends,
// so the consumer must drain until the buffer is empty.
func (b *SampleBuffer) Ready() <-chan struct{} {
	return b.notify
}

// Close drops anything queued; later appends are ignored
func (b *SampleBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.queue = nil
}

// Len is the number of queued samples
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Appended is the total number of samples ever accepted
func (b *SampleBuffer) Appended() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appended
}
