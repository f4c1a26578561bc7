package coroutil

import (
	"context"
	"testing"

	"github.com/loopcore/shard"
	"github.com/stretchr/testify/require"
)

func TestSingleFlightDeduplicatesConcurrentCallers(t *testing.T) {
	r := require.New(t)

	sh := shard.NewShard(context.Background())
	var sf SingleFlight

	calls := 0
	gate := shard.NewPromise[shard.Void](sh, shard.DefaultGroup)
	gateFuture := gate.GetFuture()

	type outcome struct {
		val    any
		err    error
		shared bool
	}

	const n = 3
	outcomes := make([]outcome, n)
	var futures []shard.Future[shard.Void]

	for i := 0; i < n; i++ {
		i := i
		futures = append(futures, shard.Go(sh, shard.DefaultGroup, func(a *shard.Async) shard.Void {
			v, err, shared := sf.Do(sh, a, "key", func() (any, error) {
				calls++
				shard.Await(a, gateFuture)
				return 42, nil
			})
			outcomes[i] = outcome{v, err, shared}
			return shard.Void{}
		}))
	}

	sh.RunUntilIdle()
	r.Equal(1, calls, "only the first caller must actually run fn")

	gate.SetValue(shard.Void{})
	sh.RunUntilIdle()

	r.Equal(1, calls)
	for i, o := range outcomes {
		r.NoError(o.err, "caller %d", i)
		r.EqualValues(42, o.val, "caller %d", i)
	}
	r.True(outcomes[1].shared)
	r.True(outcomes[2].shared)

	for i, f := range futures {
		r.True(f.Available(), "caller %d", i)
	}
}
