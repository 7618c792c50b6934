package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// PerformanceRepository manages the per student-subject performance
// summaries. The summary is a cache over the attempt log, never ground
// truth on its own.
type PerformanceRepository struct {
	db *gorm.DB
}

func NewPerformanceRepository(db *gorm.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PerformanceRepository) WithTx(tx *gorm.DB) *PerformanceRepository {
	return &PerformanceRepository{db: tx}
}

// GetOrInit fetches the summary for a student-subject pair, returning a
// zero-valued unsaved summary when none exists yet.
func (r *PerformanceRepository) GetOrInit(ctx context.Context, studentID uint, subject string) (*models.PerformanceSummary, error) {
	var summary models.PerformanceSummary
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND subject = ?", studentID, subject).
		First(&summary)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return &models.PerformanceSummary{StudentID: studentID, Subject: subject}, nil
		}
		return nil, errors.Internal("failed to fetch performance summary", result.Error.Error())
	}
	return &summary, nil
}

func (r *PerformanceRepository) Save(ctx context.Context, summary *models.PerformanceSummary) error {
	result := r.db.WithContext(ctx).Save(summary)
	if result.Error != nil {
		return errors.Internal("failed to save performance summary", result.Error.Error())
	}
	return nil
}

// GetForStudent lists summaries across subjects for one student.
func (r *PerformanceRepository) GetForStudent(ctx context.Context, studentID uint) ([]*models.PerformanceSummary, error) {
	var summaries []*models.PerformanceSummary
	result := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject ASC").
		Find(&summaries)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch performance summaries", result.Error.Error())
	}
	return summaries, nil
}
