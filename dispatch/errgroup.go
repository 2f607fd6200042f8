package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunJoinErrors fans fn out across num workers using errgroup, the way
// backend/raid3 fans Put/Mkdir/Rmdir/Purge out across its three backends,
// and returns the first error encountered (if any). The context handed to
// fn is cancelled once any worker returns an error; fn may ignore it, and
// every worker is joined before RunJoinErrors returns.
func RunJoinErrors(ctx context.Context, num int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < num; i++ {
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
