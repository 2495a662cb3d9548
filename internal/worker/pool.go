// Package worker runs independent per-file jobs concurrently.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task pairs an input with the outcome of processing it.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
}

// ProcessFunc processes a single input.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool is a generic worker pool with configurable concurrency.
type Pool[T any, R any] struct {
	workers int
	process ProcessFunc[T, R]
}

// NewPool creates a new worker pool.
func NewPool[T any, R any](workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		workers: workers,
		process: fn,
	}
}

// Execute runs all inputs through the pool. Results keep input order; inputs
// never started because ctx was cancelled carry ctx.Err().
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Task[T, R] {
	results := make([]Task[T, R], len(inputs))
	for i, in := range inputs {
		results[i].Input = in
	}
	inputCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range inputCh {
				result, err := p.process(ctx, inputs[idx])
				results[idx].Result = result
				results[idx].Err = err
				if err != nil {
					log.Error().Err(err).Int("worker", workerID).Int("index", idx).Msg("Task failed")
				}
			}
		}(w)
	}

	sent := 0
send:
	for ; sent < len(inputs); sent++ {
		select {
		case <-ctx.Done():
			break send
		case inputCh <- sent:
		}
	}
	close(inputCh)
	wg.Wait()

	for i := sent; i < len(inputs); i++ {
		results[i].Err = ctx.Err()
	}
	return results
}

// Failed counts the tasks that returned an error.
func Failed[T any, R any](tasks []Task[T, R]) int {
	n := 0
	for _, t := range tasks {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// Batch splits items into consecutive slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
