package coroutil

import (
	"context"
	"errors"
	"testing"

	"github.com/loopcore/shard"
	"github.com/stretchr/testify/require"
)

func TestErrGroupReturnsFirstError(t *testing.T) {
	r := require.New(t)

	sh := shard.NewShard(context.Background())
	boom := errors.New("boom")

	var waitErr error
	outer := shard.Go(sh, shard.DefaultGroup, func(a *shard.Async) shard.Void {
		g := NewErrGroup(sh, a)

		g.Go(func(ctx context.Context) error { return nil })
		g.Go(func(ctx context.Context) error { return boom })

		waitErr = g.Wait(sh, a)
		return shard.Void{}
	})

	sh.RunUntilIdle()

	r.True(outer.Available())
	r.ErrorIs(waitErr, boom)
}

func TestErrGroupNoErrorsReturnsNil(t *testing.T) {
	r := require.New(t)

	sh := shard.NewShard(context.Background())

	var waitErr error
	var ran int
	outer := shard.Go(sh, shard.DefaultGroup, func(a *shard.Async) shard.Void {
		g := NewErrGroup(sh, a)

		for i := 0; i < 3; i++ {
			g.Go(func(ctx context.Context) error {
				ran++
				return nil
			})
		}

		waitErr = g.Wait(sh, a)
		return shard.Void{}
	})

	sh.RunUntilIdle()

	r.True(outer.Available())
	r.NoError(waitErr)
	r.Equal(3, ran)
}
