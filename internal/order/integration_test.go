package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"wave-ticketing/internal/config"
	"wave-ticketing/internal/database/migrations"
	"wave-ticketing/internal/event"
	eventdb "wave-ticketing/internal/event/db"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
	orderdb "wave-ticketing/internal/order/db"
	ticketdb "wave-ticketing/internal/tickets/db"
	qr "wave-ticketing/internal/tickets/qr_genrator"
	tickets "wave-ticketing/internal/tickets/service"
)

func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ticketing",
				"POSTGRES_PASSWORD": "ticketing",
				"POSTGRES_DB":       "ticketing",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://ticketing:ticketing@%s:%s/ticketing?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(20)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	runner := migrations.NewRunner(db, logger.NewWithWriter(io.Discard))
	require.NoError(t, runner.MigrateUp())
	return db
}

func TestPostgres_ConcurrentPurchasesNeverOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard)
	db := startPostgres(t)
	store := &eventdb.DB{Bun: db}
	events := event.NewService(store, nil, nil, log)

	ev, err := events.CreateEvent(ctx, event.CreateEventInput{
		Name:  "Sold Out Show",
		Date:  time.Now().Add(48 * time.Hour),
		Venue: "Stadium",
		Categories: []inventory.CategoryInput{
			{Type: "regular", Price: 40, Seats: 10},
		},
	}, "admin-1")
	require.NoError(t, err)
	_, err = events.AddWave(ctx, ev.ID, inventory.WaveInput{
		Categories: []inventory.CategoryInput{{Type: "regular", Price: 55, Seats: 5}},
	})
	require.NoError(t, err)

	ticketSvc := tickets.NewTicketService(&ticketdb.DB{Bun: db}, qr.NewQRGenerator("k", "https://app.test"), log)
	svc := NewOrderService(store, &orderdb.DB{Bun: db}, ticketSvc, withRetries(3), log)

	const buyers = 40
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		sold       int
		rejected   int
		unexpected []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.PlaceOrder(ctx, fmt.Sprintf("user-%d", i), buy(ev.ID, "regular", 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sold += resp.Quantity
			case errors.Is(err, inventory.ErrInsufficientInventory), errors.Is(err, inventory.ErrConcurrentConflict):
				rejected++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 15, sold)
	assert.Equal(t, buyers-15, rejected)

	after, err := store.LoadEventTree(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.RegularSeats)
	assert.Equal(t, 15, after.SoldCount)
	assert.True(t, after.IsSoldOut)
	for _, w := range after.Waves {
		for _, c := range w.Categories {
			assert.Equal(t, c.TotalSeats, c.SoldSeats+c.RemainingSeats)
			assert.Zero(t, c.RemainingSeats)
		}
	}

	n, err := db.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	var early int
	err = db.NewSelect().Model((*models.Order)(nil)).ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("price_per_ticket = ?", 40.0).Scan(ctx, &early)
	require.NoError(t, err)
	assert.Equal(t, 10, early, "the first wave sells out before the second")
}

func withRetries(retries int) config.PurchaseConfig {
	cfg := defaultConfig()
	cfg.ConflictRetries = retries
	return cfg
}
