package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wave-ticketing/internal/models"
)

type MockCommitStore struct {
	mock.Mock
}

func (m *MockCommitStore) LockEvent(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommitStore) DecrementCategory(ctx context.Context, eventID, waveID, categoryID string, qty int) (bool, error) {
	args := m.Called(ctx, eventID, waveID, categoryID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommitStore) DecrementLegacy(ctx context.Context, eventID string, t models.SeatType, qty int) (bool, error) {
	args := m.Called(ctx, eventID, t, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommitStore) MarkLegacySoldOut(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockCommitStore) IncrementSoldCount(ctx context.Context, eventID string, qty int) error {
	return m.Called(ctx, eventID, qty).Error(0)
}

func (m *MockCommitStore) LoadEventTree(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	ev, _ := args.Get(0).(*models.Event)
	return ev, args.Error(1)
}

func (m *MockCommitStore) SaveAggregates(ctx context.Context, ev *models.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func TestSelect_FirstFitInWaveOrder(t *testing.T) {
	ev := waveEvent(
		wave("w1", "Early bird", true, cat("c1", models.SeatTypeRegular, 20, 10, 2)),
		wave("w2", "Wave 2", true, cat("c2", models.SeatTypeRegular, 30, 10, 10)),
	)

	a, err := ForEvent(ev).Select(models.SeatTypeRegular, 2)
	require.NoError(t, err)
	assert.Equal(t, "c1", *a.CategoryID)
	assert.Equal(t, "Early bird", *a.WaveName)
	assert.Equal(t, 20.0, a.PricePerTicket)
	assert.Equal(t, 40.0, a.TotalPrice)

	a, err = ForEvent(ev).Select(models.SeatTypeRegular, 3)
	require.NoError(t, err, "exhausted wave falls through")
	assert.Equal(t, "c2", *a.CategoryID)
	assert.Equal(t, "Wave 2", *a.WaveName)
	assert.Equal(t, 90.0, a.TotalPrice)
}

func TestSelect_SkipsInactiveWavesAndOtherTypes(t *testing.T) {
	ev := waveEvent(
		wave("w1", "Paused", false, cat("c1", models.SeatTypeVIP, 100, 10, 10)),
		wave("w2", "Open", true,
			cat("c2", models.SeatTypeFanPit, 50, 10, 10),
			cat("c3", models.SeatTypeVIP, 120, 10, 10),
		),
	)

	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 1)
	require.NoError(t, err)
	assert.Equal(t, "c3", *a.CategoryID)
}

func TestSelect_NoSplitAcrossCategories(t *testing.T) {
	ev := waveEvent(
		wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 10, 2)),
		wave("w2", "Wave 2", true, cat("c2", models.SeatTypeVIP, 100, 10, 2)),
	)

	_, err := ForEvent(ev).Select(models.SeatTypeVIP, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	assert.Equal(t, "Not enough vip seats available", err.Error())
	assert.Equal(t, CodeInsufficientInventory, Code(err))
}

func TestSelect_Legacy(t *testing.T) {
	ev := &models.Event{ID: "legacy", IsActive: true, FanPitSeats: 4, FanPitPrice: 45.5}

	a, err := ForEvent(ev).Select(models.SeatTypeFanPit, 4)
	require.NoError(t, err)
	assert.Nil(t, a.WaveID)
	assert.Nil(t, a.WaveName)
	assert.Equal(t, 45.5, a.PricePerTicket)
	assert.Equal(t, 182.0, a.TotalPrice)

	_, err = ForEvent(ev).Select(models.SeatTypeFanPit, 5)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	ev.IsSoldOut = true
	_, err = ForEvent(ev).Select(models.SeatTypeFanPit, 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestCommit_WaveRecomputesAndSaves(t *testing.T) {
	ctx := context.Background()
	ev := waveEvent(wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 5, 5)))
	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 3)
	require.NoError(t, err)

	after := waveEvent(wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 5, 2)))

	store := new(MockCommitStore)
	store.On("LockEvent", ctx, "evt-1").Return(true, nil)
	store.On("DecrementCategory", ctx, "evt-1", "w1", "c1", 3).Return(true, nil)
	store.On("IncrementSoldCount", ctx, "evt-1", 3).Return(nil)
	store.On("LoadEventTree", ctx, "evt-1").Return(after, nil)
	store.On("SaveAggregates", ctx, mock.MatchedBy(func(e *models.Event) bool {
		return e.VIPSeats == 2 && e.VIPPrice == 100 && e.TotalSeats == 5 && !e.IsSoldOut
	})).Return(nil)

	got, err := ForEvent(ev).Commit(ctx, store, a)
	require.NoError(t, err)
	assert.Equal(t, 2, got.VIPSeats)
	store.AssertExpectations(t)
}

func TestCommit_WaveConflictDoesNotFallThrough(t *testing.T) {
	ctx := context.Background()
	ev := waveEvent(
		wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 5, 5)),
		wave("w2", "Wave 2", true, cat("c2", models.SeatTypeVIP, 120, 5, 5)),
	)
	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 3)
	require.NoError(t, err)

	store := new(MockCommitStore)
	store.On("LockEvent", ctx, "evt-1").Return(true, nil)
	store.On("DecrementCategory", ctx, "evt-1", "w1", "c1", 3).Return(false, nil)

	_, err = ForEvent(ev).Commit(ctx, store, a)
	assert.ErrorIs(t, err, ErrConcurrentConflict)
	assert.Equal(t, CodeConcurrentConflict, Code(err))
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "DecrementCategory", ctx, "evt-1", "w2", "c2", 3)
	store.AssertNotCalled(t, "SaveAggregates", mock.Anything, mock.Anything)
}

func TestCommit_WaveEventDeactivated(t *testing.T) {
	ctx := context.Background()
	ev := waveEvent(wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 5, 5)))
	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 1)
	require.NoError(t, err)

	store := new(MockCommitStore)
	store.On("LockEvent", ctx, "evt-1").Return(false, nil)

	_, err = ForEvent(ev).Commit(ctx, store, a)
	assert.ErrorIs(t, err, ErrConcurrentConflict)
	store.AssertNotCalled(t, "DecrementCategory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommit_Legacy(t *testing.T) {
	ctx := context.Background()
	ev := &models.Event{ID: "legacy", IsActive: true, RegularSeats: 2, RegularPrice: 10}
	a, err := ForEvent(ev).Select(models.SeatTypeRegular, 2)
	require.NoError(t, err)

	after := &models.Event{ID: "legacy", IsActive: true, RegularPrice: 10, SoldCount: 2, IsSoldOut: true}

	store := new(MockCommitStore)
	store.On("DecrementLegacy", ctx, "legacy", models.SeatTypeRegular, 2).Return(true, nil)
	store.On("MarkLegacySoldOut", ctx, "legacy").Return(nil)
	store.On("LoadEventTree", ctx, "legacy").Return(after, nil)

	got, err := ForEvent(ev).Commit(ctx, store, a)
	require.NoError(t, err)
	assert.True(t, got.IsSoldOut)
	store.AssertNotCalled(t, "SaveAggregates", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestCommit_LegacyConflict(t *testing.T) {
	ctx := context.Background()
	ev := &models.Event{ID: "legacy", IsActive: true, VIPSeats: 1}
	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 1)
	require.NoError(t, err)

	store := new(MockCommitStore)
	store.On("DecrementLegacy", ctx, "legacy", models.SeatTypeVIP, 1).Return(false, nil)

	_, err = ForEvent(ev).Commit(ctx, store, a)
	assert.ErrorIs(t, err, ErrConcurrentConflict)
}

func TestCommit_InfraErrorIsInternal(t *testing.T) {
	ctx := context.Background()
	ev := waveEvent(wave("w1", "Wave 1", true, cat("c1", models.SeatTypeVIP, 100, 5, 5)))
	a, err := ForEvent(ev).Select(models.SeatTypeVIP, 1)
	require.NoError(t, err)

	store := new(MockCommitStore)
	store.On("LockEvent", ctx, "evt-1").Return(false, errors.New("connection reset"))

	_, err = ForEvent(ev).Commit(ctx, store, a)
	require.Error(t, err)
	assert.Equal(t, CodeInternal, Code(err))
	assert.Equal(t, 500, HTTPStatus(err))
	assert.Equal(t, "Internal server error", Message(err))
}
