package mainqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midisuite/internal/mainqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainRunsTasksInOrder(t *testing.T) {
	q := mainqueue.New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, q.Async(func() { got = append(got, i) }))
	}
	assert.Equal(t, 5, q.Len())

	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.Drain())
}

func TestDrainRunsTasksQueuedWhileDraining(t *testing.T) {
	q := mainqueue.New()
	ran := 0
	q.Async(func() {
		ran++
		q.Async(func() { ran++ })
	})
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 2, ran)
}

func TestAsyncFromManyGoroutines(t *testing.T) {
	q := mainqueue.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Async(func() {})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, q.Drain())
}

func TestRunAndSync(t *testing.T) {
	q := mainqueue.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- q.Run(ctx) }()

	counter := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Sync(context.Background(), func() { counter++ }))
	}
	assert.Equal(t, 10, counter)

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClose(t *testing.T) {
	q := mainqueue.New()
	q.Async(func() { t.Error("discarded task ran") })

	runErr := make(chan error, 1)
	q.Close()
	go func() { runErr <- q.Run(context.Background()) }()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	assert.False(t, q.Async(func() {}))
	assert.ErrorIs(t, q.Sync(context.Background(), func() {}), mainqueue.ErrClosed)
	q.Close()
}
