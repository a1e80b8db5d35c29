package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"squad-predictions/internal/clients"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errUnavailable = errors.New("collaborator unavailable")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.LedgerEntry{},
		&models.PredictionPoll{},
		&models.Participation{},
		&models.PollReport{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// setupSharedTestDB builds a database that multiple goroutines can hit at
// once. A plain :memory: DSN gives every pooled connection a private
// database, so concurrency tests pin one shared-cache connection instead.
func setupSharedTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.LedgerEntry{},
		&models.PredictionPoll{},
		&models.Participation{},
		&models.PollReport{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, id uint, balance int64) *models.User {
	t.Helper()

	user := &models.User{
		ID:       id,
		Username: "user-" + uuid.NewString()[:8],
		Balance:  decimal.NewFromInt(balance),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestPoll(t *testing.T, db *gorm.DB, status models.PollStatus) *models.PredictionPoll {
	t.Helper()

	now := time.Now()
	poll := &models.PredictionPoll{
		ID:           uuid.New(),
		SquadID:      "squad-alpha",
		Title:        "Will the squad finish the sprint challenge?",
		OptionALabel: "Yes",
		OptionBLabel: "No",
		DeadlineAt:   now.Add(24 * time.Hour),
		Status:       status,
		CreatedBy:    1,
		SubmittedAt:  now,
		PoolA:        decimal.Zero,
		PoolB:        decimal.Zero,
		StakeEnabled: true,
		VoteEnabled:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(poll).Error; err != nil {
		t.Fatalf("failed to create poll: %v", err)
	}
	return poll
}

func reloadPoll(t *testing.T, db *gorm.DB, pollID uuid.UUID) *models.PredictionPoll {
	t.Helper()

	var poll models.PredictionPoll
	if err := db.Where("id = ?", pollID).First(&poll).Error; err != nil {
		t.Fatalf("failed to reload poll: %v", err)
	}
	return &poll
}

func reloadUser(t *testing.T, db *gorm.DB, userID uint) *models.User {
	t.Helper()

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return &user
}

// fakeProgressTracker is a canned ProgressTracker for tests.
type fakeProgressTracker struct {
	completed int
	warm      bool
	err       error
}

func (f *fakeProgressTracker) CompletedCount(ctx context.Context, userID uint) (int, error) {
	return f.completed, f.err
}

func (f *fakeProgressTracker) WarmAccount(ctx context.Context, userID uint) (bool, error) {
	return f.warm, f.err
}

// fakeSquadDirectory is a canned SquadDirectory for tests.
type fakeSquadDirectory struct {
	membership *clients.SquadMembership
	err        error
}

func (f *fakeSquadDirectory) SquadOf(ctx context.Context, userID uint) (*clients.SquadMembership, error) {
	return f.membership, f.err
}

func newTestRepo(db *gorm.DB) *repository.Repository {
	return repository.NewRepository(db)
}
