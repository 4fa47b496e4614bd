package scoring

import (
	"context"

	"github.com/sawpanic/edgarscore/internal/infrastructure/async"
)

// DefaultWorkers bounds concurrent ticker fetches.
const DefaultWorkers = 200

func runPool(ctx context.Context, n, workers int, fn func(ctx context.Context, i int), skip func(i int, err error)) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	async.Run(ctx, n, workers, fn, skip)
}
