package actions

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/cache"
	"github.com/varoOP/animesync/internal/database"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/outbox"
	"github.com/varoOP/animesync/internal/repository"
)

type countTrigger struct{ n atomic.Int32 }

func (c *countTrigger) Trigger() { c.n.Add(1) }

type nopPublisher struct{}

func (nopPublisher) Publish(domain.CacheEvent) {}

type fixture struct {
	svc      *Service
	cache    *cache.Service
	outbox   *outbox.Service
	sessions *repository.FileRepository
	trigger  *countTrigger
}

func setup(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(dir, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := repository.NewFileRepository(zerolog.Nop(), dir)
	require.NoError(t, sessions.Store(context.Background(), &domain.Session{ServerURL: "http://server", LoggedIn: loggedIn}))

	c := cache.NewService(zerolog.Nop(), database.NewCacheRepo(zerolog.Nop(), db), nopPublisher{})
	o := outbox.NewService(zerolog.Nop(), database.NewOutboxRepo(zerolog.Nop(), db))
	trig := &countTrigger{}

	return &fixture{
		svc:      NewService(zerolog.Nop(), sessions, c, o, trig),
		cache:    c,
		outbox:   o,
		sessions: sessions,
		trigger:  trig,
	}
}

func TestAddIsOptimisticAndQueued(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)

	day := domain.Wednesday
	receipt, err := f.svc.Add(ctx, "https://anime-sama.eu/catalogue/show/saison1/vostfr/", &day)
	require.NoError(t, err)
	assert.Equal(t, domain.AnimeKey("/catalogue/show/saison1/vostfr"), receipt.Key)
	assert.Equal(t, "auto_download (mercredi)", receipt.Location)
	assert.Equal(t, "anime added to auto_download (mercredi)", receipt.Message)

	queued, err := f.svc.Contains(ctx, "/catalogue/show/saison1/vostfr")
	require.NoError(t, err)
	assert.True(t, queued)

	actions, err := f.outbox.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, receipt.ID, actions[0].ID)
	assert.Equal(t, &day, actions[0].Day)
	assert.Equal(t, int32(1), f.trigger.n.Load())
}

func TestRemoveIsOptimisticAndQueued(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)

	_, err := f.svc.Add(ctx, "/catalogue/show/saison1/vostfr", nil)
	require.NoError(t, err)
	receipt, err := f.svc.Remove(ctx, "catalogue/show/saison1/vostfr/")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRemove, receipt.Kind)

	queued, err := f.svc.Contains(ctx, "/catalogue/show/saison1/vostfr")
	require.NoError(t, err)
	assert.False(t, queued)

	actions, err := f.outbox.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionAdd, actions[0].Kind)
	assert.Equal(t, domain.ActionRemove, actions[1].Kind)
	assert.Equal(t, int32(2), f.trigger.n.Load())
}

func TestRefusedWhenNotLoggedIn(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	_, err := f.svc.Add(ctx, "/catalogue/show/saison1/vostfr", nil)
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
	_, err = f.svc.Remove(ctx, "/catalogue/show/saison1/vostfr")
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)

	n, err := f.outbox.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), f.trigger.n.Load())
}

func TestRejectsUnidentifiableURL(t *testing.T) {
	f := setup(t, true)
	_, err := f.svc.Add(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

// brokenOutbox refuses every write
type brokenOutbox struct{}

func (brokenOutbox) Enqueue(context.Context, domain.PendingAction) error { return assert.AnError }
func (brokenOutbox) List(context.Context) ([]domain.PendingAction, error) { return nil, nil }
func (brokenOutbox) Delete(context.Context, []string) error               { return nil }
func (brokenOutbox) Count(context.Context) (int, error)                   { return 0, nil }

func TestFailedEnqueueRevertsCache(t *testing.T) {
	ctx := context.Background()
	f := setup(t, true)
	svc := NewService(zerolog.Nop(), f.sessions, f.cache, outbox.NewService(zerolog.Nop(), brokenOutbox{}), f.trigger)

	const present = domain.AnimeKey("/catalogue/kept/saison1/vf")
	require.NoError(t, f.cache.AddOptimistic(ctx, present))

	_, err := svc.Remove(ctx, present.String())
	require.ErrorIs(t, err, assert.AnError)
	ok, err := f.cache.Contains(ctx, present)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Remove(ctx, "/catalogue/absent/saison1/vf")
	require.ErrorIs(t, err, assert.AnError)
	ok, err = f.cache.Contains(ctx, "/catalogue/absent/saison1/vf")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Add(ctx, "/catalogue/new/saison1/vf", nil)
	require.ErrorIs(t, err, assert.AnError)
	ok, err = f.cache.Contains(ctx, "/catalogue/new/saison1/vf")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(0), f.trigger.n.Load())
}
