package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteKeepsOrder(t *testing.T) {
	pool := NewPool[int, int](4, func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errors.New("three")
		}
		return n * n, nil
	})

	tasks := pool.Execute(context.Background(), []int{1, 2, 3, 4, 5})
	assert.Len(t, tasks, 5)
	for i, task := range tasks {
		assert.Equal(t, i+1, task.Input)
	}
	assert.Equal(t, 25, tasks[4].Result)
	assert.EqualError(t, tasks[2].Err, "three")
	assert.Equal(t, 1, Failed(tasks))
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	pool := NewPool[int, int](0, func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	tasks := pool.Execute(ctx, []int{1, 2, 3})
	assert.Len(t, tasks, 3)
	assert.Equal(t, int(3-calls.Load()), Failed(tasks))
	for _, task := range tasks {
		if task.Err != nil {
			assert.ErrorIs(t, task.Err, context.Canceled)
		}
	}
}

func TestBatch(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batch([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1}, {2}}, Batch([]int{1, 2}, 0))
	assert.Nil(t, Batch([]int{}, 3))
}
