// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleBufferOrder(t *testing.T) {
	b := NewSampleBuffer()

	assert.Equal(t, 2, b.Append(ballots([]int{1, 0}, []int{0, 1})))
	assert.Equal(t, 1, b.Append(ballots([]int{0, 0})))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Appended())

	got := b.Drain()
	assert.Equal(t, ballots([]int{1, 0}, []int{0, 1}, []int{0, 0}), got)
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Drain())
	assert.Equal(t, 3, b.Appended())
}

func TestSampleBufferReady(t *testing.T) {
	b := NewSampleBuffer()

	select {
	case <-b.Ready():
		t.Fatal("ready before any append")
	default:
	}

	b.Append(ballots([]int{1, 0}))
	b.Append(ballots([]int{1, 0}))

	select {
	case <-b.Ready():
	default:
		t.Fatal("not ready after append")
	}
	// one signal covers both appends
	select {
	case <-b.Ready():
		t.Fatal("second signal for coalesced appends")
	default:
	}
	assert.Len(t, b.Drain(), 2)
}

func TestSampleBufferClose(t *testing.T) {
	b := NewSampleBuffer()
	b.Append(ballots([]int{1, 0}))
	b.Close()

	assert.Zero(t, b.Len())
	assert.Zero(t, b.Append(ballots([]int{1, 0})))
	assert.Empty(t, b.Drain())
	assert.Equal(t, 1, b.Appended())
}

func TestSampleBufferEmptyAppend(t *testing.T) {
	b := NewSampleBuffer()
	assert.Zero(t, b.Append(nil))

	select {
	case <-b.Ready():
		t.Fatal("empty append signalled")
	default:
	}
}

func TestSampleBufferExactlyOnce(t *testing.T) {
	const producers, perProducer = 8, 250
	b := NewSampleBuffer()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Append([]Sample{BatchSample{Batch: p*perProducer + i}})
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	seen := make(map[int]int)
	collect := func() {
		for _, s := range b.Drain() {
			seen[s.(BatchSample).Batch]++
		}
	}
	for running := true; running; {
		select {
		case <-b.Ready():
			collect()
		case <-done:
			collect()
			running = false
		}
	}

	require.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "sample %d drained %d times", id, n)
	}
}
