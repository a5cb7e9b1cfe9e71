package sideeffect

import (
	"context"
	"sync"
)

// Settle runs every fn concurrently and waits for all of them. The i-th
// error belongs to fns[i]; a failure never cancels its siblings.
func Settle(ctx context.Context, fns ...func(ctx context.Context) error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func(ctx context.Context) error) {
			defer wg.Done()
			errs[i] = fn(ctx)
		}(i, fn)
	}
	wg.Wait()
	return errs
}
