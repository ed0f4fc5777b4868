package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

func setupService(t *testing.T) (*Service, *db.Repositories) {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.SQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "../../migrations"))

	repos := db.NewRepositories(database)
	return NewService(repos), repos
}

func TestGetStation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	st := models.NewStation("lounge", "Lounge", models.ManagedByMix, 96000)
	require.NoError(t, svc.CreateStation(ctx, st))

	got, err := svc.GetStation(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, models.ManagedByMix, got.ManagedBy)

	_, err = svc.GetStation(ctx, "missing")
	assert.ErrorIs(t, err, streaming.ErrStationNotFound)

	err = svc.CreateStation(ctx, models.NewStation("lounge", "Again", models.ManagedByDJ, 96000))
	assert.ErrorIs(t, err, db.ErrDuplicate)

	err = svc.CreateStation(ctx, models.NewStation("bad", "Bad", models.ManagedBy("ROBOT"), 96000))
	assert.ErrorIs(t, err, db.ErrInvalidInput)

	all, err := svc.ListStations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSupplyAndRecordPlay(t *testing.T) {
	svc, repos := setupService(t)
	ctx := context.Background()

	st := models.NewStation("jazz", "Jazz", models.ManagedByItself, 128000)
	require.NoError(t, svc.CreateStation(ctx, st))
	played := models.NewSoundFragment(st.ID, "So What", "Miles Davis", "/music/so_what.mp3")
	fresh := models.NewSoundFragment(st.ID, "Naima", "John Coltrane", "/music/naima.mp3")
	require.NoError(t, repos.SoundFragments.Create(ctx, played))
	require.NoError(t, repos.SoundFragments.Create(ctx, fresh))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RecordPlay(ctx, played.ID, at))
	assert.NoError(t, svc.RecordPlay(ctx, uuid.New(), at), "missing fragments are ignored")

	songs, err := svc.GetBrandSongs(ctx, st.ID, models.ContentSong, 1, nil)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, fresh.ID, songs[0].ID, "least played first")

	songs, err = svc.GetBrandSongs(ctx, st.ID, models.ContentSong, 5, []uuid.UUID{fresh.ID})
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, played.ID, songs[0].ID)
	assert.Equal(t, int64(1), songs[0].PlayedCount)

	got, err := svc.GetFragment(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "Naima", got.Title)

	_, err = svc.GetFragment(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrFragmentNotFound)
}
