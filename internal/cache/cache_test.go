package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"floodcv/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableKey(label string, features ...string) core.Hash {
	date := time.Date(2022, 9, 8, 0, 0, 0, 0, time.UTC)
	return core.ComputeTableKey(core.ComputeGroupFingerprint(date, label), features)
}

func TestGetPut(t *testing.T) {
	c := New[int]()
	key := tableKey("event0", "VV", "VH")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, 7)
	v, ok := c.Get(tableKey("event0", "VH", "VV"))
	require.True(t, ok, "feature order does not change the key")
	assert.Equal(t, 7, v)

	_, ok = c.Get(tableKey("event1", "VV", "VH"))
	assert.False(t, ok)

	assert.Equal(t, Stats{Entries: 1, Hits: 1, Misses: 2}, c.Stats())

	c.Delete(key)
	assert.Zero(t, c.Len())
}

func TestGetOrComputeComputesOnce(t *testing.T) {
	c := New[string]()
	key := tableKey("event2", "DEM")
	var calls int32

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), key, func(context.Context) (string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "table", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "table", r)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New[int]()
	key := tableKey("event3", "slope")
	boom := errors.New("provider unavailable")

	_, err := c.GetOrCompute(context.Background(), key, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute(context.Background(), key, func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
