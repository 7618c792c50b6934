package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/common/validation"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
	"github.com/tachyonedu/practice-engine/internal/practice/repository"
)

// SessionService manages the practice session lifecycle.
type SessionService struct {
	db       *gorm.DB
	sessions *repository.SessionRepository
	attempts *repository.AttemptRepository
	cfg      engine.Config
}

func NewSessionService(db *gorm.DB, sessions *repository.SessionRepository, attempts *repository.AttemptRepository, cfg engine.Config) *SessionService {
	return &SessionService{
		db:       db,
		sessions: sessions,
		attempts: attempts,
		cfg:      cfg,
	}
}

// StartSession validates the requested mode and scope, force-ends any
// session the student left open, and opens a new one. Both steps commit
// together so the one-active-session invariant holds.
func (s *SessionService) StartSession(ctx context.Context, studentID uint, req *models.StartSessionRequest) (*models.PracticeSession, error) {
	if err := validateScope(req); err != nil {
		return nil, err
	}

	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = "personal"
	}

	session := &models.PracticeSession{
		StudentID:  studentID,
		Mode:       req.Mode,
		Subjects:   req.Subjects,
		Chapters:   req.Chapters,
		Topics:     req.Topics,
		DeviceType: deviceType,
		StartedAt:  time.Now().UTC(),
		IsActive:   true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		attempts := s.attempts.WithTx(tx)

		active, err := sessions.GetActive(ctx, studentID)
		if err == nil {
			if err := closeSession(ctx, sessions, attempts, active); err != nil {
				return err
			}
		} else if !errors.IsNotFound(err) {
			return err
		}

		return sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func validateScope(req *models.StartSessionRequest) error {
	if verrs := validation.Validate(req); len(verrs) > 0 {
		return errors.Validation("invalid session request", verrs[0].Field+": "+verrs[0].Message)
	}

	switch req.Mode {
	case models.ModeTopic:
		if len(req.Topics) == 0 {
			return errors.BadRequest("topic mode requires at least one topic")
		}
	case models.ModeChapter, models.ModeMultiChapter:
		if len(req.Chapters) == 0 {
			return errors.BadRequest("chapter mode requires at least one chapter")
		}
	case models.ModeMultiSubject:
		if len(req.Subjects) == 0 {
			return errors.BadRequest("multi-subject mode requires at least one subject")
		}
	}

	for _, values := range [][]string{req.Subjects, req.Chapters, req.Topics} {
		for _, v := range values {
			if err := validation.ValidateStringRange(v, 1, 100); err != nil {
				return errors.Validation("invalid scope value", err.Error())
			}
		}
	}
	return nil
}

// EndSession closes the student's session and returns its summary. Closing
// an already-ended session is a conflict, not a repeat summary.
func (s *SessionService) EndSession(ctx context.Context, studentID, sessionID uint) (*models.SessionSummary, error) {
	var summary *models.SessionSummary

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		attempts := s.attempts.WithTx(tx)

		session, err := sessions.GetForStudent(ctx, sessionID, studentID)
		if err != nil {
			return err
		}
		if !session.IsActive {
			return errors.Conflict("session already ended")
		}

		if err := closeSession(ctx, sessions, attempts, session); err != nil {
			return err
		}

		summary = summarize(session)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// closeSession fills a session's final aggregates from the attempt log and
// deactivates it.
func closeSession(ctx context.Context, sessions *repository.SessionRepository, attempts *repository.AttemptRepository, session *models.PracticeSession) error {
	total, correct, err := attempts.SessionAggregates(ctx, session.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session.TotalQuestions = total
	session.CorrectAnswers = correct
	session.EndedAt = &now
	session.IsActive = false

	return sessions.Save(ctx, session)
}

func summarize(session *models.PracticeSession) *models.SessionSummary {
	duration := 0
	if session.EndedAt != nil {
		duration = int(session.EndedAt.Sub(session.StartedAt).Minutes())
	}
	return &models.SessionSummary{
		TotalQuestions:  session.TotalQuestions,
		CorrectAnswers:  session.CorrectAnswers,
		Accuracy:        session.Accuracy(),
		DurationMinutes: duration,
	}
}

// WeakTopics surfaces the student's below-cutoff topics over the recent
// window, optionally scoped to subjects.
func (s *SessionService) WeakTopics(ctx context.Context, studentID uint, subjects []string) ([]models.WeakTopicStat, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.WeakTopicWindow)

	stats, err := s.attempts.TopicAccuracy(ctx, studentID, cutoff, subjects, s.cfg.MinTopicAttempts)
	if err != nil {
		return nil, err
	}

	out := make([]models.WeakTopicStat, 0, len(stats))
	for _, st := range stats {
		if st.Accuracy() >= s.cfg.RevisionAccuracyCutoff {
			continue
		}
		out = append(out, models.WeakTopicStat{
			Subject:  st.Subject,
			Topic:    st.Topic,
			Attempts: st.Total,
			Accuracy: st.Accuracy(),
		})
	}
	return out, nil
}
