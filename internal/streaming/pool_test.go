package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

func newTestPool(t *testing.T, stations ...*models.Station) (*StationPool, *fakeRuntime) {
	t.Helper()
	catalog := mapCatalog{}
	for _, s := range stations {
		catalog[s.Slug] = s
	}
	rt := newFakeRuntime()
	pool := NewStationPool(testBroadcastConfig(), catalog, ManagerDeps{
		Segmenter: newFakeSegmenter(2),
		Supplier:  &fakeSupplier{},
		Runtime:   rt,
	})
	return pool, rt
}

func TestPoolStartIsIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, models.NewStation("jazz", "Jazz", models.ManagedByDJ, 0))
	ctx := context.Background()

	first, err := pool.Start(ctx, "jazz")
	require.NoError(t, err)
	second, err := pool.Start(ctx, "jazz")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, models.StatusWaitingForCurator, first.Status())
}

func TestPoolUnknownStation(t *testing.T) {
	pool, _ := newTestPool(t)
	ctx := context.Background()

	_, err := pool.Start(ctx, "nope")
	assert.ErrorIs(t, err, ErrStationNotFound)
	assert.ErrorIs(t, pool.Stop(ctx, "nope"), ErrStationNotFound)
	assert.ErrorIs(t, pool.AddFragmentToSlice(ctx, "nope", SliceRequest{}), ErrStationNotFound)
	_, err = pool.Stats("nope")
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestPoolStopShutsDown(t *testing.T) {
	station := models.NewStation("jazz", "Jazz", models.ManagedByItself, 0)
	pool, rt := newTestPool(t, station)
	ctx := context.Background()

	m, err := pool.Start(ctx, "jazz")
	require.NoError(t, err)
	require.NoError(t, pool.AddFragmentToSlice(ctx, "jazz", SliceRequest{Fragment: newSong(station.ID, "A")}))

	st, err := pool.Stats("jazz")
	require.NoError(t, err)
	assert.Equal(t, 1, st.RegularQueue)

	require.NoError(t, pool.Stop(ctx, "jazz"))
	_, ok := pool.Get("jazz")
	assert.False(t, ok)
	assert.Equal(t, models.StatusOffline, m.Status())
	assert.True(t, rt.Cancelled("jazz:feed"))

	again, err := pool.Start(ctx, "jazz")
	require.NoError(t, err)
	assert.NotSame(t, m, again)
	assert.Equal(t, models.StatusWarmingUp, again.Status())
}

func TestPoolListAndStopAll(t *testing.T) {
	pool, _ := newTestPool(t,
		models.NewStation("rock", "Rock", models.ManagedByDJ, 0),
		models.NewStation("ambient", "Ambient", models.ManagedByDJ, 0),
	)
	ctx := context.Background()
	_, err := pool.Start(ctx, "rock")
	require.NoError(t, err)
	_, err = pool.Start(ctx, "ambient")
	require.NoError(t, err)

	list := pool.List()
	require.Len(t, list, 2)
	assert.Equal(t, "ambient", list[0].Slug())
	assert.Equal(t, "rock", list[1].Slug())

	pool.StopAll(ctx)
	assert.Equal(t, 0, pool.Len())
	assert.Equal(t, models.StatusOffline, list[0].Status())
	assert.Equal(t, models.StatusOffline, list[1].Status())
}
