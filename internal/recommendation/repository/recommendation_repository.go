package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/recommendation/models"

	practice "github.com/tachyonedu/practice-engine/internal/practice/models"
)

// RecommendationRepository persists recommendation rows and runs the
// attempt-log and question-bank reads the recommendation paths need.
type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RecommendationRepository) WithTx(tx *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: tx}
}

// CreateBatch persists a set of generated recommendations atomically.
func (r *RecommendationRepository) CreateBatch(ctx context.Context, recs []*models.PracticeRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Create(&recs)
	if result.Error != nil {
		return errors.Internal("failed to create recommendations", result.Error.Error())
	}
	return nil
}

// PendingGlobal returns incomplete recommendations addressed to all
// students whose question is still active, most urgent first.
func (r *RecommendationRepository) PendingGlobal(ctx context.Context, limit int) ([]*models.PracticeRecommendation, error) {
	var recs []*models.PracticeRecommendation

	result := r.db.WithContext(ctx).Model(&models.PracticeRecommendation{}).
		Joins("JOIN questions ON questions.id = practice_recommendations.question_id").
		Where("practice_recommendations.student_id IS NULL AND practice_recommendations.is_completed = ? AND questions.is_active = ?", false, true).
		Order("practice_recommendations.priority ASC, practice_recommendations.created_at DESC").
		Limit(limit).
		Find(&recs)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch pending recommendations", result.Error.Error())
	}

	return recs, nil
}

// MarkCompleted sets the completion flag and timestamp on one row.
func (r *RecommendationRepository) MarkCompleted(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.PracticeRecommendation{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{"is_completed": true, "completed_at": now})
	if result.Error != nil {
		return errors.Internal("failed to mark recommendation completed", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return errors.NotFound("pending recommendation")
	}
	return nil
}

// CompleteForAttempt completes a student's personal recommendations for a
// question once the student attempts it. Rows addressed to all students are
// left pending; the read path filters them per student instead.
func (r *RecommendationRepository) CompleteForAttempt(ctx context.Context, studentID, questionID uint) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.PracticeRecommendation{}).
		Where("student_id = ? AND question_id = ? AND is_completed = ?", studentID, questionID, false).
		Updates(map[string]interface{}{"is_completed": true, "completed_at": now})
	if result.Error != nil {
		return errors.Internal("failed to complete recommendations for attempt", result.Error.Error())
	}
	return nil
}

// AttemptedQuestionIDs returns every question id the student has ever
// attempted. Recommendation paths only ever suggest unattempted items.
func (r *RecommendationRepository) AttemptedQuestionIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).Model(&practice.Attempt{}).
		Where("student_id = ?", studentID).
		Distinct().
		Pluck("question_id", &ids)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch attempted question ids", result.Error.Error())
	}
	return ids, nil
}

// RecentSubjects returns up to n subjects the student practiced most
// recently.
func (r *RecommendationRepository) RecentSubjects(ctx context.Context, studentID uint, n int) ([]string, error) {
	var subjects []string
	result := r.db.WithContext(ctx).Model(&practice.Attempt{}).
		Select("questions.subject").
		Joins("JOIN questions ON questions.id = attempts.question_id").
		Where("attempts.student_id = ?", studentID).
		Group("questions.subject").
		Order("MAX(attempts.created_at) DESC").
		Limit(n).
		Pluck("questions.subject", &subjects)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch recent subjects", result.Error.Error())
	}
	return subjects, nil
}

// IncorrectQuestion is one question a student answered wrong recently, with
// how often and when last.
type IncorrectQuestion struct {
	QuestionID  uint
	Subject     string
	Chapter     string
	Topic       string
	Difficulty  int
	Attempts    int
	LastAttempt time.Time
}

// IncorrectQuestions returns questions the student answered incorrectly
// since the cutoff, grouped per question, most recently missed first.
func (r *RecommendationRepository) IncorrectQuestions(ctx context.Context, studentID uint, since time.Time, limit int) ([]IncorrectQuestion, error) {
	var rows []IncorrectQuestion

	result := r.db.WithContext(ctx).Model(&practice.Attempt{}).
		Select("questions.id as question_id, questions.subject as subject, questions.chapter as chapter, questions.topic as topic, questions.difficulty as difficulty, COUNT(attempts.id) as attempts, MAX(attempts.created_at) as last_attempt").
		Joins("JOIN questions ON questions.id = attempts.question_id").
		Where("attempts.student_id = ? AND attempts.is_correct = ? AND attempts.created_at >= ?", studentID, false, since).
		Group("questions.id, questions.subject, questions.chapter, questions.topic, questions.difficulty").
		Order("last_attempt DESC").
		Limit(limit).
		Scan(&rows)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch incorrect questions", result.Error.Error())
	}

	return rows, nil
}

// HasCorrectSince reports whether the student answered the question
// correctly after the given time.
func (r *RecommendationRepository) HasCorrectSince(ctx context.Context, studentID, questionID uint, after time.Time) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&practice.Attempt{}).
		Where("student_id = ? AND question_id = ? AND is_correct = ? AND created_at > ?", studentID, questionID, true, after).
		Count(&count)
	if result.Error != nil {
		return false, errors.Internal("failed to check later correct attempts", result.Error.Error())
	}
	return count > 0, nil
}

// QuestionsByIDs fetches questions keyed by id.
func (r *RecommendationRepository) QuestionsByIDs(ctx context.Context, ids []uint) (map[uint]*practice.Question, error) {
	byID := make(map[uint]*practice.Question, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	var questions []*practice.Question
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch questions by id", result.Error.Error())
	}

	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// QuestionsForTopic returns active questions for an exact
// subject/chapter/topic within a difficulty band.
func (r *RecommendationRepository) QuestionsForTopic(ctx context.Context, subject, chapter, topic string, minDifficulty, maxDifficulty, limit int) ([]*practice.Question, error) {
	var questions []*practice.Question
	result := r.db.WithContext(ctx).
		Where("subject = ? AND chapter = ? AND topic = ? AND is_active = ?", subject, chapter, topic, true).
		Where("difficulty BETWEEN ? AND ?", minDifficulty, maxDifficulty).
		Limit(limit).
		Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch questions for topic", result.Error.Error())
	}
	return questions, nil
}

// QuestionsForSubject returns active questions for a subject within a
// difficulty band.
func (r *RecommendationRepository) QuestionsForSubject(ctx context.Context, subject string, minDifficulty, maxDifficulty, limit int) ([]*practice.Question, error) {
	var questions []*practice.Question
	result := r.db.WithContext(ctx).
		Where("subject = ? AND is_active = ?", subject, true).
		Where("difficulty BETWEEN ? AND ?", minDifficulty, maxDifficulty).
		Limit(limit).
		Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch questions for subject", result.Error.Error())
	}
	return questions, nil
}

// UnattemptedForTopic returns active questions in a subject+topic the
// student has not tried, easiest first.
func (r *RecommendationRepository) UnattemptedForTopic(ctx context.Context, subject, topic string, excludeIDs []uint, limit int) ([]*practice.Question, error) {
	var questions []*practice.Question

	query := r.db.WithContext(ctx).
		Where("subject = ? AND topic = ? AND is_active = ?", subject, topic, true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	result := query.Order("difficulty ASC").Limit(limit).Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch unattempted topic questions", result.Error.Error())
	}
	return questions, nil
}

// RandomMediumForSubjects samples unattempted medium questions across
// subjects in random order, for exploratory fill.
func (r *RecommendationRepository) RandomMediumForSubjects(ctx context.Context, subjects []string, excludeIDs []uint, minDifficulty, maxDifficulty, limit int) ([]*practice.Question, error) {
	var questions []*practice.Question

	query := r.db.WithContext(ctx).
		Where("subject IN ? AND is_active = ?", subjects, true).
		Where("difficulty BETWEEN ? AND ?", minDifficulty, maxDifficulty)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	result := query.Order("RANDOM()").Limit(limit).Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to sample exploratory questions", result.Error.Error())
	}
	return questions, nil
}

// SameTopicQuestions returns active unattempted questions sharing the given
// question's subject and topic, used as the similarity fallback.
func (r *RecommendationRepository) SameTopicQuestions(ctx context.Context, subject, topic string, excludeQuestionID uint, excludeIDs []uint, limit int) ([]*practice.Question, error) {
	var questions []*practice.Question

	query := r.db.WithContext(ctx).
		Where("subject = ? AND topic = ? AND is_active = ? AND id <> ?", subject, topic, true, excludeQuestionID)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	result := query.Limit(limit).Find(&questions)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch same-topic questions", result.Error.Error())
	}
	return questions, nil
}
