package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolvesOnce(t *testing.T) {
	f := NewFuture()
	_, resolved := f.Value()
	assert.False(t, resolved)

	assert.True(t, f.resolve(true))
	assert.False(t, f.resolve(false))

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, v)

	select {
	case <-f.Done():
	default:
		t.Fatal("expected done channel closed")
	}
}

func TestFutureWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := NewFuture().Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolvedFuture(t *testing.T) {
	v, resolved := Resolved(false).Value()
	assert.True(t, resolved)
	assert.False(t, v)
}

func TestGateOnlyCloses(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Open())
	g.Set(true)
	assert.True(t, g.Open())
	assert.True(t, g.Close())
	assert.False(t, g.Close())
	g.Set(true)
	assert.False(t, g.Open())
}
