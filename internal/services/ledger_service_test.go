package services

import (
	"context"
	"sync"
	"testing"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newLedgerForTest(db *gorm.DB, progress *fakeProgressTracker) *LedgerService {
	repo := newTestRepo(db)
	wallet := NewWalletService(db)
	return NewLedgerService(db, repo, wallet, progress)
}

func TestParticipateStakeDebitsAndGrowsPool(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	part, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("participate failed: %v", err)
	}
	if !part.StakeAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected stake amount 100, got %s", part.StakeAmount.String())
	}

	updated := reloadPoll(t, db, poll.ID)
	if !updated.PoolA.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected pool_a 100, got %s", updated.PoolA.String())
	}
	if !updated.PoolB.IsZero() {
		t.Errorf("expected pool_b 0, got %s", updated.PoolB.String())
	}
	if updated.ParticipantCount != 1 {
		t.Errorf("expected participant_count 1, got %d", updated.ParticipantCount)
	}

	if balance := reloadUser(t, db, user.ID).Balance; !balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("expected balance 900, got %s", balance.String())
	}

	var entry models.LedgerEntry
	if err := db.Where("user_id = ?", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected a ledger entry: %v", err)
	}
	if entry.Type != models.LedgerEntryStakeDebit {
		t.Errorf("expected entry type %s, got %s", models.LedgerEntryStakeDebit, entry.Type)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("expected entry amount -100, got %s", entry.Amount.String())
	}
}

func TestParticipateDuplicateChargesOnce(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	if _, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("first participate failed: %v", err)
	}

	_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "B", decimal.NewFromInt(100))
	if !apperrors.IsCode(err, apperrors.CodeAlreadyParticipating) {
		t.Fatalf("expected already_participating, got %v", err)
	}

	updated := reloadPoll(t, db, poll.ID)
	if !updated.TotalPool().Equal(decimal.NewFromInt(100)) {
		t.Errorf("duplicate must not grow the pool, got total %s", updated.TotalPool().String())
	}
	if updated.ParticipantCount != 1 {
		t.Errorf("expected participant_count 1, got %d", updated.ParticipantCount)
	}
	if balance := reloadUser(t, db, user.ID).Balance; !balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("duplicate must not charge again, balance %s", balance.String())
	}
}

func TestParticipateConcurrentDuplicate(t *testing.T) {
	db := setupSharedTestDB(t, "participate_concurrent_test")
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	// Two racing entries from the same user; the unique index, not timing,
	// decides which one lands
	errs := make([]error, 2)
	options := []string{"A", "B"}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", options[i], decimal.NewFromInt(100))
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.IsCode(err, apperrors.CodeAlreadyParticipating):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected one success and one already_participating, got %d/%d", succeeded, rejected)
	}

	updated := reloadPoll(t, db, poll.ID)
	if !updated.TotalPool().Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total pool 100, got %s", updated.TotalPool().String())
	}
	if updated.ParticipantCount != 1 {
		t.Errorf("expected participant_count 1, got %d", updated.ParticipantCount)
	}
	if balance := reloadUser(t, db, user.ID).Balance; !balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("the losing entry must be refunded, balance %s", balance.String())
	}

	var parts int64
	db.Model(&models.Participation{}).Where("poll_id = ?", poll.ID).Count(&parts)
	if parts != 1 {
		t.Errorf("expected one participation row, got %d", parts)
	}
}

func TestParticipateInsufficientBalanceRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 40)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(100))
	if !apperrors.IsCode(err, apperrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient_balance, got %v", err)
	}

	var count int64
	db.Model(&models.Participation{}).Where("poll_id = ?", poll.ID).Count(&count)
	if count != 0 {
		t.Errorf("failed debit must leave no participation row, found %d", count)
	}
	if updated := reloadPoll(t, db, poll.ID); !updated.TotalPool().IsZero() {
		t.Errorf("failed debit must leave the pool empty, got %s", updated.TotalPool().String())
	}
	if balance := reloadUser(t, db, user.ID).Balance; !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance must be untouched, got %s", balance.String())
	}
}

func TestParticipateStakeBounds(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 10000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	cases := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", decimal.NewFromInt(-10)},
		{"above cap", decimal.NewFromInt(501)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", tc.amount)
			if !apperrors.IsCode(err, apperrors.CodeStakeOutOfBounds) {
				t.Errorf("expected stake_out_of_bounds, got %v", err)
			}
		})
	}

	// The cap itself is allowed
	if _, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(500)); err != nil {
		t.Errorf("stake at the cap must succeed, got %v", err)
	}
}

func TestParticipateColdAccount(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	t.Run("not warm", func(t *testing.T) {
		ledger := newLedgerForTest(db, &fakeProgressTracker{warm: false})
		_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(50))
		if !apperrors.IsCode(err, apperrors.CodeColdAccount) {
			t.Errorf("expected cold_account, got %v", err)
		}
	})

	t.Run("tracker down denies stake", func(t *testing.T) {
		ledger := newLedgerForTest(db, &fakeProgressTracker{err: errUnavailable})
		_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(50))
		if !apperrors.IsCode(err, apperrors.CodeColdAccount) {
			t.Errorf("expected cold_account on tracker failure, got %v", err)
		}
	})
}

func TestParticipateModeDisabled(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)
	if err := db.Model(poll).Update("stake_enabled", false).Error; err != nil {
		t.Fatalf("failed to disable stakes: %v", err)
	}

	_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(50))
	if !apperrors.IsCode(err, apperrors.CodeModeDisabled) {
		t.Errorf("expected mode_disabled, got %v", err)
	}

	// Voting stays available on the same poll
	if _, err := ledger.Participate(context.Background(), poll.ID, user.ID, "VOTE", "A", decimal.Zero); err != nil {
		t.Errorf("vote must still work, got %v", err)
	}
}

func TestParticipatePollNotOpen(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})
	user := createTestUser(t, db, 1, 1000)

	for _, status := range []models.PollStatus{
		models.PollStatusPending,
		models.PollStatusLocked,
		models.PollStatusUnderReview,
		models.PollStatusResolved,
		models.PollStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			poll := createTestPoll(t, db, status)
			_, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "A", decimal.NewFromInt(50))
			if !apperrors.IsCode(err, apperrors.CodePollNotOpen) {
				t.Errorf("expected poll_not_open for %s, got %v", status, err)
			}
		})
	}
}

func TestParticipateVoteCarriesNoMoney(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})

	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	// A vote ignores any amount the client sends
	part, err := ledger.Participate(context.Background(), poll.ID, user.ID, "VOTE", "B", decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if !part.StakeAmount.IsZero() {
		t.Errorf("vote must carry zero stake, got %s", part.StakeAmount.String())
	}

	updated := reloadPoll(t, db, poll.ID)
	if !updated.TotalPool().IsZero() {
		t.Errorf("vote must not grow the pools, got %s", updated.TotalPool().String())
	}
	if updated.ParticipantCount != 1 {
		t.Errorf("vote still counts as a participant, got %d", updated.ParticipantCount)
	}
	if balance := reloadUser(t, db, user.ID).Balance; !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("vote must not touch the balance, got %s", balance.String())
	}
}

func TestParticipateRejectsUnknownModeAndOption(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})
	user := createTestUser(t, db, 1, 1000)
	poll := createTestPoll(t, db, models.PollStatusOpen)

	if _, err := ledger.Participate(context.Background(), poll.ID, user.ID, "WAGER", "A", decimal.NewFromInt(50)); !apperrors.IsCode(err, apperrors.CodeInvalidRequest) {
		t.Errorf("expected invalid_request for unknown mode, got %v", err)
	}
	if _, err := ledger.Participate(context.Background(), poll.ID, user.ID, "STAKE", "C", decimal.NewFromInt(50)); !apperrors.IsCode(err, apperrors.CodeInvalidRequest) {
		t.Errorf("expected invalid_request for unknown option, got %v", err)
	}
}

func TestPoolsMatchRecordedStakes(t *testing.T) {
	db := setupTestDB(t)
	ledger := newLedgerForTest(db, &fakeProgressTracker{warm: true})
	poll := createTestPoll(t, db, models.PollStatusOpen)

	stakes := []struct {
		userID uint
		option string
		amount int64
	}{
		{1, "A", 120},
		{2, "B", 80},
		{3, "A", 300},
		{4, "B", 45},
	}

	for _, s := range stakes {
		createTestUser(t, db, s.userID, 1000)
		if _, err := ledger.Participate(context.Background(), poll.ID, s.userID, "STAKE", s.option, decimal.NewFromInt(s.amount)); err != nil {
			t.Fatalf("stake by user %d failed: %v", s.userID, err)
		}
	}

	updated := reloadPoll(t, db, poll.ID)
	if !updated.PoolA.Equal(decimal.NewFromInt(420)) {
		t.Errorf("expected pool_a 420, got %s", updated.PoolA.String())
	}
	if !updated.PoolB.Equal(decimal.NewFromInt(125)) {
		t.Errorf("expected pool_b 125, got %s", updated.PoolB.String())
	}

	parts, err := ledger.GetPollParticipations(context.Background(), poll.ID)
	if err != nil {
		t.Fatalf("failed to list participations: %v", err)
	}
	recorded := decimal.Zero
	for _, part := range parts {
		recorded = recorded.Add(part.StakeAmount)
	}
	if !recorded.Equal(updated.TotalPool()) {
		t.Errorf("pools %s diverge from recorded stakes %s", updated.TotalPool().String(), recorded.String())
	}
}
