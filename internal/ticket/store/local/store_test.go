package local_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/migration"
	"github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/internal/ticket/store/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const vin = "1HGBH41JXMN109186"

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, vin, 1, " Alice ")
	require.NoError(t, err)
	second, err := store.Create(ctx, vin, 2, "")
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, domain.StatusNew, first.Status)
	assert.Nil(t, first.AssigneeID)
	assert.Equal(t, "Alice", first.DisplayName)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _ := newStore(t)

	ticket, err := store.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, ticket)
}

func TestUpdateStatus(t *testing.T) {
	store, fake := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)

	ok, err := store.UpdateStatus(ctx, 999, domain.StatusTaken, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	fake.Advance(time.Minute)
	operator := int64(50)
	ok, err = store.UpdateStatus(ctx, created.ID, domain.StatusTaken, &operator)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateStatus(ctx, created.ID, domain.StatusDone, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, operator, *got.AssigneeID)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = store.UpdateStatus(ctx, created.ID, "LOST", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCompareAndSetStatusGuards(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)
	operator := int64(7)

	ok, err := store.CompareAndSetStatus(ctx, created.ID, []domain.Status{domain.StatusTaken}, domain.StatusDone, &operator)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSetStatus(ctx, created.ID, []domain.Status{domain.StatusNew}, domain.StatusTaken, &operator)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSetStatus(ctx, created.ID, []domain.Status{domain.StatusNew}, domain.StatusTaken, &operator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentCompareAndSetHasOneWinner(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(operator int64) {
			defer wg.Done()
			<-start
			ok, err := store.CompareAndSetStatus(ctx, created.ID, []domain.Status{domain.StatusNew}, domain.StatusTaken, &operator)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(int64(i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestFindOpenIgnoresDoneAndOtherRequesters(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	done, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, done.ID, domain.StatusDone, nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, vin, 2, "")
	require.NoError(t, err)

	open, err := store.FindOpen(ctx, vin, 1)
	require.NoError(t, err)
	assert.Nil(t, open)

	taken, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, taken.ID, domain.StatusTaken, nil)
	require.NoError(t, err)

	open, err = store.FindOpen(ctx, vin, 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, taken.ID, open.ID)
}

func TestListByRequesterNewestFirst(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		created, err := store.Create(ctx, vin, 9, "")
		require.NoError(t, err)
		_, err = store.UpdateStatus(ctx, created.ID, domain.StatusDone, nil)
		require.NoError(t, err)
	}
	items, err := store.ListByRequester(ctx, 9, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Greater(t, items[0].ID, items[1].ID)

	require.NoError(t, store.Ping(ctx))
	assert.Equal(t, domain.BackendLocal, store.Backend())
}

func TestCreateRejectsSecondOpenTicket(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, vin, 1, "")
	require.NoError(t, err)
	_, err = store.Create(ctx, vin, 1, "")
	assert.ErrorIs(t, err, domain.ErrDuplicateOpen)

	_, err = store.UpdateStatus(ctx, first.ID, domain.StatusTaken, nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, vin, 1, "")
	assert.ErrorIs(t, err, domain.ErrDuplicateOpen)

	_, err = store.UpdateStatus(ctx, first.ID, domain.StatusDone, nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, vin, 1, "")
	assert.NoError(t, err)
}

func TestEventLogAppendsInOrder(t *testing.T) {
	db := setupTestDB(t)
	log := local.NewEventLog(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, log.Append(ctx, &domain.Event{TicketID: 1, ToStatus: domain.StatusNew, ActorType: "requester", ActorID: 3, CreatedAt: now}))
	require.NoError(t, log.Append(ctx, &domain.Event{
		TicketID: 1, FromStatus: domain.StatusNew, ToStatus: domain.StatusTaken, ActorType: "operator", ActorID: 4,
		Metadata: datatypes.JSON(`{"attempt":1}`), CreatedAt: now,
	}))

	events, err := log.ListByTicket(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusTaken, events[1].ToStatus)
	assert.JSONEq(t, `{"attempt":1}`, string(events[1].Metadata))
}

func newStore(t *testing.T) (*local.Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	return local.New(setupTestDB(t), fake), fake
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tickets_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.Run(db))
	return db
}
