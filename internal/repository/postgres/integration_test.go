//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/domain"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "../../../config/config.test.yaml", "path to config file")
}

// prepareDB connects to the test database and applies the reminder schema.
func prepareDB(t *testing.T) *sql.DB {
	if !flag.Parsed() {
		flag.Parse()
	}

	finalPath := configPath
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		altPath := filepath.Join("..", "..", "..", configPath)
		if _, err := os.Stat(altPath); err == nil {
			finalPath = altPath
		}
	}

	cfg, err := config.Load(finalPath)
	if err != nil {
		t.Fatalf("failed to load config from %s: %v", finalPath, err)
	}

	var db *sql.DB
	// Retry connection as DB might still be starting up
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	_, err = Migrate(db)
	require.NoError(t, err)
	return db
}

func cleanup(t *testing.T, db *sql.DB, bookingID int32) {
	t.Helper()
	_, err := db.Exec(`DELETE FROM reminder_logs WHERE booking_id = $1`, bookingID)
	require.NoError(t, err)
}

func TestIntegration_ClaimRace(t *testing.T) {
	db := prepareDB(t)
	defer db.Close()

	const bookingID int32 = 990001
	cleanup(t, db, bookingID)
	defer cleanup(t, db, bookingID)

	repo := NewReminderLogRepository(db)
	ctx := context.Background()
	key := domain.NaturalKey{BookingID: bookingID, RecipientEmail: "race@test.com", ReminderDate: "2026-03-10", Type: domain.ReminderTypeDueDay}

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertClaim(ctx, &domain.ReminderClaim{
				BookingID: key.BookingID, RecipientEmail: key.RecipientEmail,
				ReminderDate: key.ReminderDate, Type: key.Type, ClaimedAt: time.Now(),
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)

	row, err := repo.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusClaimed, row.Status)
	assert.Equal(t, int32(1), row.Attempt)
	assert.Equal(t, "2026-03-10", row.ReminderDate)

	// fail it, then race adoptions
	ok, err := repo.MarkFailed(ctx, row.ID, row.Attempt, "smtp timeout")
	require.NoError(t, err)
	require.True(t, ok)

	adopted := 0
	now := time.Now()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Adopt(ctx, row.ID, 1, now, now.Add(-15*time.Minute))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				adopted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, adopted)

	// the stale attempt can no longer record a failure
	ok, err = repo.MarkFailed(ctx, row.ID, 1, "late")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkSent(ctx, row.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkSent(ctx, row.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	sent, err := repo.ListSent(ctx, "2026-03-10", []int32{bookingID})
	require.NoError(t, err)
	assert.Equal(t, []domain.NaturalKey{key}, sent)
}
