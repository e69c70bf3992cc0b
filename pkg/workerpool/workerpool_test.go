// SPDX-License-Identifier: GPL-3.0-or-later

package workerpool_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/workerpool"
)

func TestPoolFanOutDeliversAllItems(t *testing.T) {
	pool := workerpool.New[int](4, false)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 3; i++ {
		pool.Add(func(item int) {
			mu.Lock()
			got = append(got, item)
			mu.Unlock()
		})
	}
	pool.Start()

	const n = 200
	for i := 0; i < n; i++ {
		pool.Put(i)
	}
	pool.Stop()

	require.Len(t, got, n)
	sort.Ints(got)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPoolWritersBarrierPreservesSlotOrder(t *testing.T) {
	pool := workerpool.New[int](4, true)

	var mu sync.Mutex
	var got []int
	pool.Add(func(item int) {
		mu.Lock()
		got = append(got, item)
		mu.Unlock()
	})
	pool.Start()

	const n = 500
	for i := 0; i < n; i++ {
		pool.Put(i)
	}
	pool.Stop()

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v, "writers-barrier mode with a single consumer must preserve submission order")
	}
}

func TestPoolCopyAndFreeHooks(t *testing.T) {
	pool := workerpool.New[*int](4, false)

	var copies, frees int
	var mu sync.Mutex
	pool.Copy = func(p *int) *int {
		mu.Lock()
		copies++
		mu.Unlock()
		v := *p
		return &v
	}
	pool.Free = func(p *int) {
		mu.Lock()
		frees++
		mu.Unlock()
	}

	var sum int
	var sumMu sync.Mutex
	pool.Add(func(p *int) {
		sumMu.Lock()
		sum += *p
		sumMu.Unlock()
	})
	pool.Start()

	for i := 1; i <= 10; i++ {
		v := i
		pool.Put(&v)
	}
	pool.Stop()

	assert.Equal(t, 55, sum)
	assert.Equal(t, 10, copies)
	assert.Equal(t, 10, frees)
}

func TestPoolSingleSlotRoundTrip(t *testing.T) {
	pool := workerpool.New[int](1, true)

	var got []int
	pool.Add(func(item int) { got = append(got, item) })
	pool.Start()

	for i := 0; i < 20; i++ {
		pool.Put(i)
	}
	pool.Stop()

	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
