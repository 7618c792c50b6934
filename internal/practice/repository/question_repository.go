package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// QuestionRepository reads the question bank.
type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: tx}
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	result := r.db.WithContext(ctx).First(&question, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("question")
		}
		return nil, errors.Internal("failed to fetch question", result.Error.Error())
	}
	return &question, nil
}

// FindCandidates returns every question matching the filter. All filter
// fields combine as one predicate; this is the only place the engine's
// scope constraints meet SQL.
func (r *QuestionRepository) FindCandidates(ctx context.Context, f engine.QuestionFilter) ([]models.Question, error) {
	var questions []models.Question

	result := applyFilter(r.db.WithContext(ctx), f).Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch candidate questions", result.Error.Error())
	}

	return questions, nil
}

func applyFilter(db *gorm.DB, f engine.QuestionFilter) *gorm.DB {
	query := db.Model(&models.Question{})

	if f.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if len(f.Subjects) > 0 {
		query = query.Where("subject IN ?", f.Subjects)
	}
	if len(f.Chapters) > 0 {
		query = query.Where("chapter IN ?", f.Chapters)
	}
	if len(f.Topics) > 0 {
		query = query.Where("topic IN ?", f.Topics)
	}
	if len(f.Difficulties) > 0 {
		query = query.Where("difficulty IN ?", f.Difficulties)
	}
	if len(f.IDs) > 0 {
		query = query.Where("id IN ?", f.IDs)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", f.ExcludeIDs)
	}

	return query
}
