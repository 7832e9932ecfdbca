package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusivo(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, err := l.Obtain(ctx, "reconcile:A:P", time.Minute)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "reconcile:A:P", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = l.Obtain(ctx, "reconcile:A:Q", time.Minute)
	assert.NoError(t, err, "otra clave no se bloquea")

	require.NoError(t, release(ctx))
	_, err = l.Obtain(ctx, "reconcile:A:P", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLocker_Vencimiento(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Obtain(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err, "un candado vencido se puede retomar")

	require.NoError(t, stale(ctx))
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrConflict), "el dueño viejo no libera el candado nuevo")
}
