package benchmark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPool_RegisterAndRelease(t *testing.T) {
	p := NewQueryPool(4)

	ctx, release := p.Register(context.Background())
	assert.Equal(t, 1, p.Len())
	require.NoError(t, ctx.Err())

	release()
	assert.Equal(t, 0, p.Len())
	assert.Error(t, ctx.Err())
}

func TestQueryPool_ReleaseIsIdempotent(t *testing.T) {
	p := NewQueryPool(4)
	_, release := p.Register(context.Background())
	release()
	release()
	assert.Equal(t, 0, p.Len())
}

func TestQueryPool_CancelAll(t *testing.T) {
	p := NewQueryPool(0)

	ctx1, _ := p.Register(context.Background())
	ctx2, _ := p.Register(context.Background())
	assert.Equal(t, 2, p.Len())

	p.CancelAll()
	assert.Equal(t, 0, p.Len())
	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
}

func TestQueryPool_FullPoolPassesThroughUntracked(t *testing.T) {
	p := NewQueryPool(1)

	_, release1 := p.Register(context.Background())
	defer release1()

	ctx, release2 := p.Register(context.Background())
	assert.Equal(t, 1, p.Len())
	assert.NoError(t, ctx.Err())

	// Releasing an untracked registration is a no-op.
	release2()
	assert.Equal(t, 1, p.Len())
}

func TestQueryPool_UnboundedWhenZero(t *testing.T) {
	p := NewQueryPool(0)
	for i := 0; i < 50; i++ {
		p.Register(context.Background())
	}
	assert.Equal(t, 50, p.Len())
	p.CancelAll()
}
