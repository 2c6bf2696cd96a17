package runner

import (
	"context"
	"sync"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers concurrently. Jobs not yet
// started when ctx is cancelled are skipped and report ctx.Err(). Returns all errors.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	sem := make(chan struct{}, maxWorkers)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			record(err)
			continue
		}
		select {
		case <-ctx.Done():
			record(ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := j(ctx); err != nil {
				record(err)
			}
		}(job)
	}
	wg.Wait()
	return errs
}
