package batch

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs indexed tasks with bounded parallelism.
type Pool struct {
	size int
}

// NewPool returns a pool of the given size. A size <= 0 means one worker
// per available CPU.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{size: size}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return p.size
}

// Run calls task for every index in [0, n) with at most Size tasks in
// flight and waits for them. Once ctx is done no further task is started;
// tasks already running complete. Run returns the number of tasks that ran.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) int {
	var g errgroup.Group
	g.SetLimit(p.size)

	var ran atomic.Int64
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ran.Add(1)
			task(ctx, i)
			return nil
		})
	}

	_ = g.Wait()
	return int(ran.Load())
}
