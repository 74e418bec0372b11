package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"wave-ticketing/internal/config"
	"wave-ticketing/internal/database/migrations"
	"wave-ticketing/internal/event"
	eventdb "wave-ticketing/internal/event/db"
	"wave-ticketing/internal/inventory"
	"wave-ticketing/internal/logger"
	"wave-ticketing/internal/models"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration")
	seed := flag.Bool("seed", false, "insert demo events after migrating")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Service: "wave-ticketing-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx := context.Background()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	defer sqldb.Close()
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(db, log)
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
		return
	}
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("MIGRATION", err.Error())
	}

	if *seed {
		if err := seedData(ctx, db, log); err != nil {
			log.Fatal("SEED", err.Error())
		}
	}
	log.Info("MIGRATION", "Done")
}

// seedData creates one wave event and one event on the flat legacy
// counters.
func seedData(ctx context.Context, db *bun.DB, log *logger.Logger) error {
	store := &eventdb.DB{Bun: db}
	events := event.NewService(store, nil, nil, log)

	ev, err := events.CreateEvent(ctx, event.CreateEventInput{
		Name:        "Summer Waves Festival",
		Date:        time.Now().AddDate(0, 2, 0).Truncate(time.Hour),
		Venue:       "Harbour Arena",
		Description: "Early bird release followed by a general release",
		Categories: []inventory.CategoryInput{
			{Type: string(models.SeatTypeVIP), Label: "Early VIP", Price: 120, Seats: 20},
			{Type: string(models.SeatTypeFanPit), Label: "Early Fan Pit", Price: 80, Seats: 50},
			{Type: string(models.SeatTypeRegular), Label: "Early General", Price: 40, Seats: 200},
		},
	}, "seed")
	if err != nil {
		return fmt.Errorf("seed wave event: %w", err)
	}
	if _, err := events.AddWave(ctx, ev.ID, inventory.WaveInput{
		Name:        "General Release",
		Description: "Opens once the early release sells out",
		Categories: []inventory.CategoryInput{
			{Type: string(models.SeatTypeVIP), Price: 160, Seats: 30},
			{Type: string(models.SeatTypeFanPit), Price: 110, Seats: 100},
			{Type: string(models.SeatTypeRegular), Price: 55, Seats: 500},
		},
	}); err != nil {
		return fmt.Errorf("seed second wave: %w", err)
	}

	now := time.Now()
	legacy := &models.Event{
		ID:             uuid.NewString(),
		Name:           "Classic Night",
		Date:           now.AddDate(0, 1, 0).Truncate(time.Hour),
		Venue:          "Old Town Hall",
		ImagePositionX: 50,
		ImagePositionY: 50,
		ImageScale:     1,
		VIPSeats:       10,
		VIPPrice:       90,
		RegularSeats:   150,
		RegularPrice:   35,
		TotalSeats:     160,
		IsActive:       true,
		CreatedBy:      "seed",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.InsertEvent(ctx, legacy); err != nil {
		return fmt.Errorf("seed legacy event: %w", err)
	}

	log.Info("SEED", fmt.Sprintf("Seeded wave event %s and legacy event %s", ev.ID, legacy.ID))
	return nil
}
