/*
Package worker pool
Structure to facilitate with the worker pool pattern
https://gobyexample.com/worker-pools

Usage:

	type Task struct {
		i int
	}

	func (task Task) Run() {
		time.Sleep(time.Duration(5) * time.Second)
		fmt.Printf("Processed task %d\n", task.i)
	}

	func main() {
		pool := worker_pool.New(5)
		pool.Start()
		for i := 0; i < 40; i++ {
			pool.Add(Task{i})
		}
		<-pool.Wait()
		pool.Stop()
		fmt.Println("Worker pool done")
	}

'Add' never blocks: tasks are queued without limit and at most 'numWorkers'
of them run at the same time. Tasks are picked up in the order they were
added, but since several workers run concurrently, nothing can be said
about the order in which they finish.

`Pool.Wait()` returns a channel that is closed once every task added so far
has completed. The fact that it is a channel gives you the option to listen
to other channels that the tasks can write to at the same time:

	waitChannel := pool.Wait()
	exitfor := false
	for !exitfor {
		select {
		case result := <-resultChannel:
			fmt.Printf("%d\n", result)
		case <-waitChannel:
			exitfor = true
		}
	}

After 'Stop', 'Add' returns ErrStopped; tasks that were already queued still
run.
*/
package worker_pool

import (
	"errors"
	"sync"
)

var ErrStopped = errors.New("worker pool is stopped")

type Task interface {
	Run()
}

type TaskFunc func()

func (f TaskFunc) Run() {
	f()
}

type Pool struct {
	numWorkers int
	mu         sync.Mutex
	cond       *sync.Cond
	drained    *sync.Cond
	queue      []Task
	pending    int
	started    bool
	stopped    bool
}

func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool := &Pool{numWorkers: numWorkers}
	pool.cond = sync.NewCond(&pool.mu)
	pool.drained = sync.NewCond(&pool.mu)
	return pool
}

func (pool *Pool) Add(task Task) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if pool.stopped {
		return ErrStopped
	}
	pool.pending++
	pool.queue = append(pool.queue, task)
	pool.cond.Signal()
	return nil
}

func (pool *Pool) Start() {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if pool.started {
		return
	}
	pool.started = true

	for i := 0; i < pool.numWorkers; i++ {
		go pool.work()
	}
}

func (pool *Pool) work() {
	for {
		pool.mu.Lock()
		for len(pool.queue) == 0 && !pool.stopped {
			pool.cond.Wait()
		}
		if len(pool.queue) == 0 {
			pool.mu.Unlock()
			return
		}
		task := pool.queue[0]
		pool.queue[0] = nil
		pool.queue = pool.queue[1:]
		pool.mu.Unlock()

		task.Run()

		pool.mu.Lock()
		pool.pending--
		if pool.pending == 0 {
			pool.drained.Broadcast()
		}
		pool.mu.Unlock()
	}
}

// Stop refuses new tasks and lets the workers exit once the queue is empty.
// It does not wait for them; use Wait for that.
func (pool *Pool) Stop() {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	pool.stopped = true
	pool.cond.Broadcast()
}

func (pool *Pool) Wait() <-chan struct{} {
	waitChannel := make(chan struct{})
	go func() {
		pool.mu.Lock()
		for pool.pending > 0 {
			pool.drained.Wait()
		}
		pool.mu.Unlock()
		close(waitChannel)
	}()
	return waitChannel
}
