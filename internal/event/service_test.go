package event

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wave-ticketing/internal/database/dbtest"
	"wave-ticketing/internal/event/db"
	eventredis "wave-ticketing/internal/event/redis"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []models.AvailabilitySnapshot
}

func (n *recordingNotifier) InventoryUpdated(_ context.Context, snap models.AvailabilitySnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snaps = append(n.snaps, snap)
}

func (n *recordingNotifier) last() models.AvailabilitySnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snaps[len(n.snaps)-1]
}

type fixture struct {
	svc      *Service
	store    *db.DB
	notifier *recordingNotifier
	mr       *miniredis.Miniredis
}

func setup(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	store := &db.DB{Bun: dbtest.NewSQLite(t)}
	notifier := &recordingNotifier{}
	svc := NewService(store, eventredis.NewAvailabilityCache(client, time.Minute), notifier, logger.NewWithWriter(io.Discard))
	return &fixture{svc: svc, store: store, notifier: notifier, mr: mr}
}

func createInput(cats ...inventory.CategoryInput) CreateEventInput {
	return CreateEventInput{
		Name:       "Summer Fest",
		Date:       time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC),
		Venue:      "Arena",
		Categories: cats,
	}
}

func TestCreateEvent_WithCategories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(
		inventory.CategoryInput{Type: "vip", Label: "Gold", Price: 150, Seats: 10},
		inventory.CategoryInput{Type: "regular", Price: 40, Seats: 100},
	), "admin-1")
	require.NoError(t, err)

	loaded, err := f.store.LoadEventTree(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Waves, 1)
	assert.Equal(t, "Wave 1", loaded.Waves[0].Name)
	assert.Equal(t, "Initial release", loaded.Waves[0].Description)
	require.Len(t, loaded.Waves[0].Categories, 2)
	assert.Equal(t, "Gold", loaded.Waves[0].Categories[0].Label)

	assert.Equal(t, 10, loaded.VIPSeats)
	assert.Equal(t, 100, loaded.RegularSeats)
	assert.Equal(t, 110, loaded.TotalSeats)
	assert.Equal(t, 150.0, loaded.VIPPrice)
	assert.False(t, loaded.IsSoldOut)
	assert.Equal(t, "admin-1", loaded.CreatedBy)
}

func TestCreateEvent_LegacyBodyNormalised(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := createInput()
	in.LegacySeats = inventory.LegacySeats{VIPSeats: 5, VIPPrice: 200, FanPitSeats: 0, FanPitPrice: 90, RegularSeats: 20, RegularPrice: 30}

	ev, err := f.svc.CreateEvent(ctx, in, "admin-1")
	require.NoError(t, err)

	loaded, err := f.store.LoadEventTree(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Waves[0].Categories, 2, "types without seats are skipped")
	assert.Equal(t, models.SeatTypeVIP, loaded.Waves[0].Categories[0].Type)
	assert.Equal(t, models.SeatTypeRegular, loaded.Waves[0].Categories[1].Type)
	assert.Equal(t, 25, loaded.TotalSeats)
}

func TestCreateEvent_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateEvent(ctx, CreateEventInput{Venue: "Arena", Date: time.Now()}, "admin")
	assert.ErrorIs(t, err, inventory.ErrInvalidEvent)

	_, err = f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "balcony", Seats: 1}), "admin")
	assert.ErrorIs(t, err, inventory.ErrInvalidSeatType)

	events, err := f.svc.ListEvents(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAddWave_DefaultNameAndRecompute(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "regular", Price: 20, Seats: 10}), "admin")
	require.NoError(t, err)

	updated, err := f.svc.AddWave(ctx, ev.ID, inventory.WaveInput{
		Categories: []inventory.CategoryInput{{Type: "regular", Price: 30, Seats: 50}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Waves, 2)
	assert.Equal(t, "Wave 2", updated.Waves[1].Name)
	assert.Equal(t, 60, updated.RegularSeats)
	assert.Equal(t, 30.0, updated.RegularPrice, "last active positive price")

	stored, err := f.store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.RegularSeats)
	assert.Equal(t, 60, stored.TotalSeats)

	assert.Equal(t, 60, f.notifier.last().RegularSeats)
}

func TestAddWave_FoldsLegacyInventory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Now()
	legacy := &models.Event{
		ID: "legacy-1", Name: "Old Show", Venue: "Club", Date: now, IsActive: true,
		VIPSeats: 2, VIPPrice: 80, RegularSeats: 7, RegularPrice: 15, TotalSeats: 12, SoldCount: 3,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.store.InsertEvent(ctx, legacy))

	updated, err := f.svc.AddWave(ctx, legacy.ID, inventory.WaveInput{
		Name:       "Encore",
		Categories: []inventory.CategoryInput{{Type: "vip", Price: 120, Seats: 5}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Waves, 2)
	assert.Equal(t, "Legacy release", updated.Waves[0].Name)
	assert.Equal(t, "Encore", updated.Waves[1].Name)
	assert.Equal(t, 7, updated.VIPSeats)
	assert.Equal(t, 7, updated.RegularSeats)
	assert.Equal(t, 120.0, updated.VIPPrice)
	assert.Equal(t, 15.0, updated.RegularPrice)
	assert.Equal(t, 17, updated.TotalSeats, "seats sold before the fold still count")

	a, err := inventory.ForEvent(updated).Select(models.SeatTypeVIP, 2)
	require.NoError(t, err)
	assert.Equal(t, "Legacy release", *a.WaveName, "unsold legacy seats keep priority")
	assert.Equal(t, 80.0, a.PricePerTicket)

	stored, err := f.store.GetEvent(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.SoldCount)
	assert.Equal(t, 17, stored.TotalSeats)

	updated, err = f.svc.AddWave(ctx, legacy.ID, inventory.WaveInput{
		Categories: []inventory.CategoryInput{{Type: "regular", Price: 20, Seats: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 21, updated.TotalSeats)
}

func TestAddWave_MostlySoldLegacyKeepsTotal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Now()
	legacy := &models.Event{
		ID: "legacy-2", Name: "Old Show", Venue: "Club", Date: now, IsActive: true,
		RegularSeats: 2, RegularPrice: 15, TotalSeats: 12, SoldCount: 10,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.store.InsertEvent(ctx, legacy))

	updated, err := f.svc.AddWave(ctx, legacy.ID, inventory.WaveInput{
		Categories: []inventory.CategoryInput{{Type: "vip", Price: 90, Seats: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 13, updated.TotalSeats)

	stored, err := f.store.GetEvent(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, stored.TotalSeats)
}

func TestUpdateCategory_SeatEdits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 100, Seats: 10}), "admin")
	require.NoError(t, err)
	waveID, catID := ev.Waves[0].ID, ev.Waves[0].Categories[0].ID

	ok, err := f.store.DecrementCategory(ctx, ev.ID, waveID, catID, 6)
	require.NoError(t, err)
	require.True(t, ok)

	seats := 5
	_, err = f.svc.UpdateCategory(ctx, ev.ID, waveID, catID, inventory.CategoryPatch{Seats: &seats})
	assert.ErrorIs(t, err, inventory.ErrSeatReductionBelowSold)

	tree, err := f.store.LoadEventTree(ctx, ev.ID)
	require.NoError(t, err)
	c := tree.Waves[0].Categories[0]
	assert.Equal(t, 10, c.TotalSeats, "rejected edit leaves category unchanged")
	assert.Equal(t, 4, c.RemainingSeats)
	assert.Equal(t, 6, c.SoldSeats)

	seats = 6
	updated, err := f.svc.UpdateCategory(ctx, ev.ID, waveID, catID, inventory.CategoryPatch{Seats: &seats})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.VIPSeats)
	assert.True(t, updated.IsSoldOut)

	seats = 20
	price := 110.0
	updated, err = f.svc.UpdateCategory(ctx, ev.ID, waveID, catID, inventory.CategoryPatch{Seats: &seats, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 14, updated.VIPSeats)
	assert.False(t, updated.IsSoldOut, "added seats reopen a sold out event")
	assert.Equal(t, 110.0, updated.VIPPrice)
	assert.Equal(t, 20, updated.TotalSeats)
}

func TestUpdateWave_PauseExcludesFromAggregates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "fanPit", Price: 60, Seats: 30}), "admin")
	require.NoError(t, err)

	off := false
	updated, err := f.svc.UpdateWave(ctx, ev.ID, ev.Waves[0].ID, inventory.WavePatch{IsActive: &off})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.FanPitSeats)
	assert.True(t, updated.IsSoldOut)
	assert.Equal(t, 30, updated.TotalSeats)
	assert.Equal(t, 60.0, updated.FanPitPrice, "snapshot kept while paused")

	on := true
	updated, err = f.svc.UpdateWave(ctx, ev.ID, ev.Waves[0].ID, inventory.WavePatch{IsActive: &on})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.FanPitSeats)
	assert.False(t, updated.IsSoldOut)
}

func TestMutations_NotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddWave(ctx, "missing", inventory.WaveInput{})
	assert.ErrorIs(t, err, inventory.ErrEventNotFound)

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 1, Seats: 1}), "admin")
	require.NoError(t, err)

	_, err = f.svc.AddCategory(ctx, ev.ID, "nope", inventory.CategoryInput{Type: "vip", Seats: 1})
	assert.ErrorIs(t, err, inventory.ErrWaveNotFound)

	_, err = f.svc.UpdateCategory(ctx, ev.ID, ev.Waves[0].ID, "nope", inventory.CategoryPatch{})
	assert.ErrorIs(t, err, inventory.ErrCategoryNotFound)
}

func TestAddCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 100, Seats: 5}), "admin")
	require.NoError(t, err)

	updated, err := f.svc.AddCategory(ctx, ev.ID, ev.Waves[0].ID, inventory.CategoryInput{Type: "regular", Label: "Standing", Price: 25, Seats: 40})
	require.NoError(t, err)
	require.Len(t, updated.Waves[0].Categories, 2)
	assert.Equal(t, "Standing", updated.Waves[0].Categories[1].Label)
	assert.Equal(t, 40, updated.RegularSeats)
	assert.Equal(t, 45, updated.TotalSeats)
}

func TestAvailability_ReadThroughAndInvalidate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 100, Seats: 5}), "admin")
	require.NoError(t, err)

	snap, err := f.svc.Availability(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.VIPSeats)
	assert.True(t, f.mr.Exists("availability:"+ev.ID))

	_, err = f.svc.AddCategory(ctx, ev.ID, ev.Waves[0].ID, inventory.CategoryInput{Type: "vip", Price: 90, Seats: 5})
	require.NoError(t, err)
	assert.False(t, f.mr.Exists("availability:"+ev.ID))

	snap, err = f.svc.Availability(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.VIPSeats)

	_, err = f.svc.Availability(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrEventNotFound)
}

func TestDeactivate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 100, Seats: 5}), "admin")
	require.NoError(t, err)

	_, err = f.svc.Availability(ctx, ev.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, ev.ID))
	assert.False(t, f.notifier.last().IsActive)

	_, err = f.svc.Availability(ctx, ev.ID)
	assert.ErrorIs(t, err, inventory.ErrEventNotFound)

	_, err = f.svc.GetEvent(ctx, ev.ID, false)
	assert.ErrorIs(t, err, inventory.ErrEventNotFound)

	got, err := f.svc.GetEvent(ctx, ev.ID, true)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := f.svc.ListEvents(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.svc.ListEvents(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, f.svc.Deactivate(ctx, "missing"), inventory.ErrEventNotFound)
}

func TestUpdateInfo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ev, err := f.svc.CreateEvent(ctx, createInput(inventory.CategoryInput{Type: "vip", Price: 100, Seats: 5}), "admin")
	require.NoError(t, err)

	name := "Winter Fest"
	scale := 1.5
	updated, err := f.svc.UpdateInfo(ctx, ev.ID, EventInfoPatch{Name: &name, ImageScale: &scale})
	require.NoError(t, err)
	assert.Equal(t, "Winter Fest", updated.Name)
	assert.Equal(t, 1.5, updated.ImageScale)
	assert.Equal(t, "Arena", updated.Venue)
	assert.Equal(t, 5, updated.VIPSeats)

	blank := " "
	_, err = f.svc.UpdateInfo(ctx, ev.ID, EventInfoPatch{Name: &blank})
	assert.ErrorIs(t, err, inventory.ErrInvalidEvent)
}
