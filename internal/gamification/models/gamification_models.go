package models

import (
	"time"
)

// PointsLedger keeps a student's running point total.
type PointsLedger struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"unique;not null" json:"student_id"`
	TotalPoints int       `gorm:"default:0;not null" json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Streak tracks consecutive days with at least one attempt.
type Streak struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentID     uint      `gorm:"unique;not null" json:"student_id"`
	CurrentStreak int       `gorm:"default:0;not null" json:"current_streak"`
	LongestStreak int       `gorm:"default:0;not null" json:"longest_streak"`
	LastActiveDay time.Time `json:"last_active_day"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Touch extends or resets the streak for activity on the given day.
func (s *Streak) Touch(now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	last := s.LastActiveDay.UTC().Truncate(24 * time.Hour)

	switch {
	case s.CurrentStreak == 0:
		s.CurrentStreak = 1
	case today.Equal(last):
		// already counted today
	case today.Sub(last) == 24*time.Hour:
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActiveDay = today
}
