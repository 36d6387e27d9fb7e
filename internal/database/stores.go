package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-trader/internal/engine"
	"ticket-trader/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntentStore is the MySQL-backed engine.IntentStore. Status transitions run
// inside a transaction holding a row lock on the intent, which serializes
// mutation per listing the same way the in-memory store's mutex does.
type IntentStore struct {
	db *gorm.DB
}

func NewIntentStore(db *gorm.DB) *IntentStore {
	return &IntentStore{db: db}
}

var activeStatuses = []string{models.StatusQueued, models.StatusProcessing}

func (s *IntentStore) Insert(ctx context.Context, intent *models.PurchaseIntent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PurchaseIntent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ? AND status IN ?", intent.ListingID, activeStatuses).
			First(&existing).Error
		if err == nil {
			return &engine.DuplicateIntentError{
				ListingID:        intent.ListingID,
				ExistingIntentID: existing.ID,
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("checking active intents for listing %s: %w", intent.ListingID, err)
		}
		return tx.Create(intent).Error
	})
}

func (s *IntentStore) Get(ctx context.Context, id string) (*models.PurchaseIntent, error) {
	var intent models.PurchaseIntent
	err := s.db.WithContext(ctx).First(&intent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *IntentStore) Transition(ctx context.Context, id, from, to string, mutate func(*models.PurchaseIntent) error) (bool, error) {
	moved := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intent models.PurchaseIntent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&intent, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.ErrNotFound
		}
		if err != nil {
			return err
		}
		if intent.Status != from {
			return nil
		}

		if mutate != nil {
			if err := mutate(&intent); err != nil {
				return err
			}
		}
		intent.Status = to
		intent.UpdatedAt = time.Now()

		if err := tx.Save(&intent).Error; err != nil {
			return err
		}
		moved = true
		return nil
	})
	return moved, err
}

func (s *IntentStore) NextDue(ctx context.Context, now time.Time) (*models.PurchaseIntent, error) {
	var intent models.PurchaseIntent
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ? AND expires_at > ?", models.StatusQueued, now, now).
		Order("FIELD(priority, 'urgent', 'high', 'normal', 'low'), created_at ASC").
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *IntentStore) ExpireOverdue(ctx context.Context, now time.Time) ([]*models.PurchaseIntent, error) {
	var expired []*models.PurchaseIntent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.PurchaseIntent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND expires_at <= ?", models.StatusQueued, now).
			Order("created_at ASC").
			Find(&rows).Error
		if err != nil {
			return err
		}
		for i := range rows {
			rows[i].Status = models.StatusExpired
			rows[i].FailureReason = "intent expired before a purchase slot freed up"
			rows[i].UpdatedAt = now
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
			row := rows[i]
			expired = append(expired, &row)
		}
		return nil
	})
	return expired, err
}

func (s *IntentStore) InsertAttempt(ctx context.Context, attempt *models.PurchaseAttempt) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}

func (s *IntentStore) AttemptsByIntent(ctx context.Context, intentID string) ([]models.PurchaseAttempt, error) {
	var attempts []models.PurchaseAttempt
	err := s.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}

// CalibrationStore persists calibration rows for the outcome tracker.
type CalibrationStore struct {
	db *gorm.DB
}

func NewCalibrationStore(db *gorm.DB) *CalibrationStore {
	return &CalibrationStore{db: db}
}

func (s *CalibrationStore) LoadAll(ctx context.Context) ([]models.PlatformCalibration, error) {
	var rows []models.PlatformCalibration
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

func (s *CalibrationStore) Save(ctx context.Context, row *models.PlatformCalibration) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}},
		UpdateAll: true,
	}).Create(row).Error
}
