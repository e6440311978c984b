package ingestion

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/jeovahfialho/trading-backend/internal/domain"
)

type OrderExecutor interface {
	Execute(ctx context.Context, side domain.Side, userID int64, symbol string, quantity int64) (*domain.Confirmation, error)
}

// WorkerPool replays orders. Orders for the same (user, symbol) always land
// on the same worker, so they run in file order while other keys run in
// parallel.
type WorkerPool struct {
	workers  int
	executor OrderExecutor
	queues   []chan Job
	wg       sync.WaitGroup
}

type Job struct {
	Index  int
	Order  Order
	Result chan<- JobResult
}

type JobResult struct {
	Index        int
	Order        Order
	Confirmation *domain.Confirmation
	Error        error
}

func NewWorkerPool(workers int, executor OrderExecutor) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan Job, workers)
	for i := range queues {
		queues[i] = make(chan Job, 2)
	}
	return &WorkerPool{
		workers:  workers,
		executor: executor,
		queues:   queues,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, wp.queues[i])
	}
}

func (wp *WorkerPool) Stop() {
	for _, q := range wp.queues {
		close(q)
	}
	wp.wg.Wait()
}

func (wp *WorkerPool) Submit(job Job) {
	wp.queues[wp.shard(job.Order)] <- job
}

func (wp *WorkerPool) shard(o Order) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(o.UserID, 10)))
	h.Write([]byte{0})
	h.Write([]byte(o.Symbol))
	return int(h.Sum32() % uint32(wp.workers))
}

func (wp *WorkerPool) worker(ctx context.Context, queue <-chan Job) {
	defer wp.wg.Done()

	for job := range queue {
		if err := ctx.Err(); err != nil {
			job.Result <- JobResult{Index: job.Index, Order: job.Order, Error: err}
			continue
		}

		o := job.Order
		confirmation, err := wp.executor.Execute(ctx, o.Side, o.UserID, o.Symbol, o.Quantity)
		job.Result <- JobResult{
			Index:        job.Index,
			Order:        o,
			Confirmation: confirmation,
			Error:        err,
		}
	}
}

// Replay runs every order through a fresh pool and returns results in order.
func Replay(ctx context.Context, workers int, executor OrderExecutor, orders []Order) []JobResult {
	pool := NewWorkerPool(workers, executor)
	pool.Start(ctx)

	results := make(chan JobResult, len(orders))
	go func() {
		for i, o := range orders {
			pool.Submit(Job{Index: i, Order: o, Result: results})
		}
		pool.Stop()
		close(results)
	}()

	ordered := make([]JobResult, len(orders))
	for r := range results {
		ordered[r.Index] = r
	}
	return ordered
}
