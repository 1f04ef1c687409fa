package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/database"
	"github.com/varoOP/animesync/internal/domain"
)

func newService(t *testing.T, dir string) (*Service, func()) {
	t.Helper()
	db, err := database.NewDB(dir, zerolog.Nop())
	require.NoError(t, err)
	return NewService(zerolog.Nop(), database.NewOutboxRepo(zerolog.Nop(), db)), func() { db.Close() }
}

func TestEnqueueKeepsOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, closeDB := newService(t, t.TempDir())
	defer closeDB()

	day := domain.Monday
	add, err := svc.Enqueue(ctx, domain.ActionAdd, "/k", &day, time.Time{})
	require.NoError(t, err)
	_, err = uuid.Parse(add.ID)
	assert.NoError(t, err)
	assert.False(t, add.CreatedAt.IsZero())

	_, err = svc.Enqueue(ctx, domain.ActionRemove, "/k", nil, time.Time{})
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, domain.ActionAdd, "/k", nil, time.Time{})
	require.NoError(t, err)

	actions, err := svc.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionAdd, actions[0].Kind)
	assert.Equal(t, &day, actions[0].Day)
	assert.Equal(t, domain.ActionRemove, actions[1].Kind)
	assert.Equal(t, domain.ActionAdd, actions[2].Kind)
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	svc, closeDB := newService(t, t.TempDir())
	defer closeDB()

	_, err := svc.Enqueue(context.Background(), domain.ActionKind("toggle"), "/k", nil, time.Time{})
	assert.Error(t, err)
}

func TestDrainWithoutClearRedelivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc, closeDB := newService(t, dir)
	_, err := svc.Enqueue(ctx, domain.ActionAdd, "/a", nil, time.Time{})
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, domain.ActionRemove, "/b", nil, time.Time{})
	require.NoError(t, err)

	first, err := svc.DrainAll(ctx)
	require.NoError(t, err)
	closeDB()

	// reopen as after a crash between drain and clear
	svc, closeDB = newService(t, dir)
	defer closeDB()

	second, err := svc.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestClearOnlyRemovesDrained(t *testing.T) {
	ctx := context.Background()
	svc, closeDB := newService(t, t.TempDir())
	defer closeDB()

	a, err := svc.Enqueue(ctx, domain.ActionAdd, "/a", nil, time.Time{})
	require.NoError(t, err)

	drained, err := svc.DrainAll(ctx)
	require.NoError(t, err)

	late, err := svc.Enqueue(ctx, domain.ActionAdd, "/late", nil, time.Time{})
	require.NoError(t, err)

	ids := make([]string, 0, len(drained))
	for _, d := range drained {
		ids = append(ids, d.ID)
	}
	require.NoError(t, svc.Clear(ctx, ids))
	require.NoError(t, svc.Clear(ctx, nil))

	rest, err := svc.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, late.ID, rest[0].ID)
	assert.NotEqual(t, a.ID, rest[0].ID)

	n, err := svc.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
