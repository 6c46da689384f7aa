// Package async runs named tasks on a bounded set of workers.
package async

import (
	"context"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

// Pool is stateless between calls; one Pool may run Execute concurrently.
type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

func (p *Pool[T]) worker(ctx context.Context, tasks <-chan Task[T], results chan<- Result[T], wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result[T]{Name: task.Name, Err: err}
			continue
		}
		data, err := task.Execute(ctx)
		results <- Result[T]{Name: task.Name, Data: data, Err: err}
	}
}

// Execute runs every task and returns the results keyed by task name. A task
// not started before ctx is cancelled reports ctx.Err().
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	taskCh := make(chan Task[T])
	resultCh := make(chan Result[T], len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount && i < len(tasks); i++ {
		wg.Add(1)
		go p.worker(ctx, taskCh, resultCh, &wg)
	}

	go func() {
		for _, task := range tasks {
			taskCh <- task
		}
		close(taskCh)
	}()

	results := make(map[string]Result[T], len(tasks))
	for range tasks {
		r := <-resultCh
		results[r.Name] = r
	}
	wg.Wait()
	return results
}

// FirstError returns the first failed result in names order.
func FirstError[T any](results map[string]Result[T], names ...string) error {
	for _, n := range names {
		if r, ok := results[n]; ok && r.Err != nil {
			return r.Err
		}
	}
	return nil
}
