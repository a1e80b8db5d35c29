package services

import (
	"context"
	"errors"
	"time"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService exposes the balance primitives the ledger composes into its
// own transactions. Debit and Credit take the transaction handle explicitly
// so a stake debit and the matching pool increment always commit or roll
// back together.
type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// Balance returns a user's current spendable balance
func (s *WalletService) Balance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperrors.New(apperrors.CodeUserNotFound, "user not found")
	}
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Debit atomically removes amount from the user's balance. The balance
// guard lives in the UPDATE itself, so a concurrent spend can never drive
// the balance negative.
func (s *WalletService) Debit(
	tx *gorm.DB,
	userID uint,
	pollID *uuid.UUID,
	amount decimal.Decimal,
	entryType models.LedgerEntryType,
	description string,
) error {
	result := tx.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var user models.User
		err := tx.Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeUserNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		return apperrors.Newf(apperrors.CodeInsufficientBalance,
			"balance %s is below stake %s", user.Balance.String(), amount.String())
	}

	return s.writeEntry(tx, userID, pollID, entryType, amount.Neg(), description)
}

// Credit atomically adds amount to the user's balance
func (s *WalletService) Credit(
	tx *gorm.DB,
	userID uint,
	pollID *uuid.UUID,
	amount decimal.Decimal,
	entryType models.LedgerEntryType,
	description string,
) error {
	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeUserNotFound, "user not found")
	}

	return s.writeEntry(tx, userID, pollID, entryType, amount, description)
}

// AddReputation adjusts a user's reputation score
func (s *WalletService) AddReputation(tx *gorm.DB, userID uint, delta int64) error {
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("reputation", gorm.Expr("reputation + ?", delta)).Error
}

func (s *WalletService) writeEntry(
	tx *gorm.DB,
	userID uint,
	pollID *uuid.UUID,
	entryType models.LedgerEntryType,
	amount decimal.Decimal,
	description string,
) error {
	entry := models.LedgerEntry{
		UserID:      userID,
		PollID:      pollID,
		Type:        entryType,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now(),
	}
	return tx.Create(&entry).Error
}
