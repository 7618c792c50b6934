package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// AttemptRepository owns the append-only attempt log and its aggregates.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: tx}
}

// Create appends one attempt. Rows are never updated afterwards.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	result := r.db.WithContext(ctx).Create(attempt)
	if result.Error != nil {
		return errors.Internal("failed to record attempt", result.Error.Error())
	}
	return nil
}

// CountForQuestion counts attempts for one (student, question, session)
// triple. Used to enforce the per-question attempt cap inside the
// submission transaction.
func (r *AttemptRepository) CountForQuestion(ctx context.Context, studentID, questionID, sessionID uint) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("student_id = ? AND question_id = ? AND session_id = ?", studentID, questionID, sessionID).
		Count(&count)
	if result.Error != nil {
		return 0, errors.Internal("failed to count attempts", result.Error.Error())
	}
	return int(count), nil
}

// SessionAggregates returns question count and correct count over a
// session's attempts, the values a session is closed with.
func (r *AttemptRepository) SessionAggregates(ctx context.Context, sessionID uint) (total int, correct int, err error) {
	var row struct {
		Total   int
		Correct int
	}

	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("COUNT(*) as total, SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) as correct").
		Where("session_id = ?", sessionID).
		Scan(&row)
	if result.Error != nil {
		return 0, 0, errors.Internal("failed to aggregate session attempts", result.Error.Error())
	}

	return row.Total, row.Correct, nil
}

// RecentAttempts returns the student's most recent attempts joined with
// question difficulty, newest first, optionally scoped.
func (r *AttemptRepository) RecentAttempts(ctx context.Context, studentID uint, limit int, subjects, topics []string) ([]engine.AttemptSample, error) {
	var samples []engine.AttemptSample

	query := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("attempts.is_correct, questions.difficulty").
		Joins("JOIN questions ON questions.id = attempts.question_id").
		Where("attempts.student_id = ?", studentID)

	if len(subjects) > 0 {
		query = query.Where("questions.subject IN ?", subjects)
	}
	if len(topics) > 0 {
		query = query.Where("questions.topic IN ?", topics)
	}

	result := query.Order("attempts.created_at DESC").Limit(limit).Scan(&samples)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch recent attempts", result.Error.Error())
	}

	return samples, nil
}

// RecentQuestionIDs returns the ids of the student's last limit attempted
// questions across all scopes.
func (r *AttemptRepository) RecentQuestionIDs(ctx context.Context, studentID uint, limit int) ([]uint, error) {
	var ids []uint

	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("question_id", &ids)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch recent question ids", result.Error.Error())
	}

	return ids, nil
}

// TopicAccuracy aggregates the student's attempts since the cutoff grouped
// by subject and topic, keeping topics with at least minAttempts. Rows come
// back in topic order so callers that scan for a minimum break ties
// deterministically.
func (r *AttemptRepository) TopicAccuracy(ctx context.Context, studentID uint, since time.Time, subjects []string, minAttempts int) ([]engine.TopicStat, error) {
	var stats []engine.TopicStat

	query := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("questions.subject as subject, questions.topic as topic, COUNT(attempts.id) as total, SUM(CASE WHEN attempts.is_correct THEN 1 ELSE 0 END) as correct").
		Joins("JOIN questions ON questions.id = attempts.question_id").
		Where("attempts.student_id = ? AND attempts.created_at >= ?", studentID, since)

	if len(subjects) > 0 {
		query = query.Where("questions.subject IN ?", subjects)
	}

	result := query.
		Group("questions.subject, questions.topic").
		Having("COUNT(attempts.id) >= ?", minAttempts).
		Order("questions.topic ASC").
		Scan(&stats)
	if result.Error != nil {
		return nil, errors.Internal("failed to aggregate topic accuracy", result.Error.Error())
	}

	return stats, nil
}

// LeastCoveredTopic returns the topic the student has attempted least. The
// outer join keeps unattempted topics eligible (and, counting zero, they
// win). Ties break on topic name.
func (r *AttemptRepository) LeastCoveredTopic(ctx context.Context, studentID uint, subjects []string) (string, error) {
	var topics []string

	query := r.db.WithContext(ctx).Model(&models.Question{}).
		Select("questions.topic").
		Joins("LEFT JOIN attempts ON attempts.question_id = questions.id AND attempts.student_id = ?", studentID)

	if len(subjects) > 0 {
		query = query.Where("questions.subject IN ?", subjects)
	}

	result := query.
		Group("questions.topic").
		Order("COUNT(attempts.id) ASC, questions.topic ASC").
		Limit(1).
		Pluck("questions.topic", &topics)
	if result.Error != nil {
		return "", errors.Internal("failed to find least covered topic", result.Error.Error())
	}

	if len(topics) == 0 {
		return "", nil
	}
	return topics[0], nil
}

// QuestionAccuracy aggregates the student's attempts per question within
// optional scope, keeping questions with at least minAttempts.
func (r *AttemptRepository) QuestionAccuracy(ctx context.Context, studentID uint, subjects, chapters, topics []string, minAttempts int) ([]engine.QuestionStat, error) {
	var stats []engine.QuestionStat

	query := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("attempts.question_id as question_id, COUNT(attempts.id) as total, SUM(CASE WHEN attempts.is_correct THEN 1 ELSE 0 END) as correct").
		Joins("JOIN questions ON questions.id = attempts.question_id").
		Where("attempts.student_id = ?", studentID)

	if len(subjects) > 0 {
		query = query.Where("questions.subject IN ?", subjects)
	}
	if len(chapters) > 0 {
		query = query.Where("questions.chapter IN ?", chapters)
	}
	if len(topics) > 0 {
		query = query.Where("questions.topic IN ?", topics)
	}

	result := query.
		Group("attempts.question_id").
		Having("COUNT(attempts.id) >= ?", minAttempts).
		Scan(&stats)
	if result.Error != nil {
		return nil, errors.Internal("failed to aggregate question accuracy", result.Error.Error())
	}

	return stats, nil
}
