package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/gamification/models"
)

// Point awards per attempt outcome.
const (
	pointsFirstAttempt        = 2
	pointsCorrectFirstAttempt = 5
	pointsCorrectRetry        = 3
)

// Service maintains points and streaks as attempt side effects.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a copy of the service bound to the given transaction so
// gamification updates commit atomically with the attempt.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// RecordAttempt awards points and extends the daily streak for one
// submitted attempt.
func (s *Service) RecordAttempt(ctx context.Context, studentID uint, isCorrect bool, attemptNo int) error {
	if err := s.addPoints(ctx, studentID, attemptPoints(isCorrect, attemptNo)); err != nil {
		return err
	}
	return s.touchStreak(ctx, studentID)
}

func attemptPoints(isCorrect bool, attemptNo int) int {
	points := 0
	if attemptNo == 1 {
		points += pointsFirstAttempt
	}
	if isCorrect {
		if attemptNo == 1 {
			points += pointsCorrectFirstAttempt
		} else {
			points += pointsCorrectRetry
		}
	}
	return points
}

func (s *Service) addPoints(ctx context.Context, studentID uint, points int) error {
	if points == 0 {
		return nil
	}

	var ledger models.PointsLedger
	result := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&ledger)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return errors.Internal("failed to fetch points ledger", result.Error.Error())
	}

	ledger.StudentID = studentID
	ledger.TotalPoints += points

	if err := s.db.WithContext(ctx).Save(&ledger).Error; err != nil {
		return errors.Internal("failed to save points ledger", err.Error())
	}
	return nil
}

func (s *Service) touchStreak(ctx context.Context, studentID uint) error {
	var streak models.Streak
	result := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&streak)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return errors.Internal("failed to fetch streak", result.Error.Error())
	}

	streak.StudentID = studentID
	streak.Touch(time.Now())

	if err := s.db.WithContext(ctx).Save(&streak).Error; err != nil {
		return errors.Internal("failed to save streak", err.Error())
	}
	return nil
}

// Profile returns the student's current points and streak.
func (s *Service) Profile(ctx context.Context, studentID uint) (*models.PointsLedger, *models.Streak, error) {
	var ledger models.PointsLedger
	if err := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&ledger).Error; err != nil && err != gorm.ErrRecordNotFound {
		return nil, nil, errors.Internal("failed to fetch points ledger", err.Error())
	}

	var streak models.Streak
	if err := s.db.WithContext(ctx).Where("student_id = ?", studentID).First(&streak).Error; err != nil && err != gorm.ErrRecordNotFound {
		return nil, nil, errors.Internal("failed to fetch streak", err.Error())
	}

	ledger.StudentID = studentID
	streak.StudentID = studentID
	return &ledger, &streak, nil
}
