package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
)

// SessionRepository manages practice session rows.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.PracticeSession) error {
	result := r.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		return errors.Internal("failed to create practice session", result.Error.Error())
	}
	return nil
}

func (r *SessionRepository) Save(ctx context.Context, session *models.PracticeSession) error {
	result := r.db.WithContext(ctx).Save(session)
	if result.Error != nil {
		return errors.Internal("failed to save practice session", result.Error.Error())
	}
	return nil
}

// GetForStudent retrieves a session owned by the student.
func (r *SessionRepository) GetForStudent(ctx context.Context, sessionID, studentID uint) (*models.PracticeSession, error) {
	var session models.PracticeSession
	result := r.db.WithContext(ctx).
		Where("id = ? AND student_id = ?", sessionID, studentID).
		First(&session)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("session")
		}
		return nil, errors.Internal("failed to fetch session", result.Error.Error())
	}
	return &session, nil
}

// GetActive retrieves the student's active session, or a not-found error.
// At most one active session per student exists at any time.
func (r *SessionRepository) GetActive(ctx context.Context, studentID uint) (*models.PracticeSession, error) {
	var session models.PracticeSession
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND is_active = ?", studentID, true).
		First(&session)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("active session")
		}
		return nil, errors.Internal("failed to fetch active session", result.Error.Error())
	}
	return &session, nil
}
