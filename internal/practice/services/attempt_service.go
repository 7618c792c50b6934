package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/common/validation"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
	"github.com/tachyonedu/practice-engine/internal/practice/repository"

	gamification "github.com/tachyonedu/practice-engine/internal/gamification/services"
	recrepo "github.com/tachyonedu/practice-engine/internal/recommendation/repository"
)

// MaxAttemptsPerQuestion caps submissions per (student, question, session).
// After the cap the solution has been revealed, so further attempts would
// be meaningless.
const MaxAttemptsPerQuestion = 2

// AttemptService serves next questions and grades submissions.
type AttemptService struct {
	db           *gorm.DB
	engine       *engine.Engine
	sessions     *repository.SessionRepository
	attempts     *repository.AttemptRepository
	questions    *repository.QuestionRepository
	performance  *repository.PerformanceRepository
	gamification *gamification.Service
	recs         *recrepo.RecommendationRepository
	cfg          engine.Config
}

func NewAttemptService(
	db *gorm.DB,
	eng *engine.Engine,
	sessions *repository.SessionRepository,
	attempts *repository.AttemptRepository,
	questions *repository.QuestionRepository,
	performance *repository.PerformanceRepository,
	gamificationSvc *gamification.Service,
	recs *recrepo.RecommendationRepository,
	cfg engine.Config,
) *AttemptService {
	return &AttemptService{
		db:           db,
		engine:       eng,
		sessions:     sessions,
		attempts:     attempts,
		questions:    questions,
		performance:  performance,
		gamification: gamificationSvc,
		recs:         recs,
		cfg:          cfg,
	}
}

// NextQuestion asks the engine for the next item in the student's active
// session. A nil question means the pool is exhausted under the session's
// scope; the handler maps that to a not-found response.
func (s *AttemptService) NextQuestion(ctx context.Context, studentID, sessionID uint) (*models.NextQuestion, error) {
	session, err := s.sessions.GetForStudent(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, errors.Conflict("session already ended")
	}

	question, err := s.engine.NextQuestion(ctx, studentID, session)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, nil
	}

	attemptsMade, err := s.attempts.CountForQuestion(ctx, studentID, question.ID, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.NextQuestion{
		ID:            question.ID,
		Subject:       question.Subject,
		Chapter:       question.Chapter,
		Topic:         question.Topic,
		Difficulty:    question.Difficulty,
		QuestionText:  question.QuestionText,
		Options:       question.Options.Data(),
		HintAvailable: question.Hint != "",
		AttemptsMade:  attemptsMade,
		MaxAttempts:   MaxAttemptsPerQuestion,
	}, nil
}

// SubmitAttempt grades one answer and applies all side effects (attempt
// row, performance summary, gamification, recommendation completion) in a
// single transaction. A third attempt on the same question in the same
// session is rejected.
func (s *AttemptService) SubmitAttempt(ctx context.Context, studentID uint, req *models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	var response *models.SubmitAttemptResponse

	// Two hours is well past any plausible single-question time.
	if err := validation.ValidateIntRange(req.TimeTaken, 0, 7200); err != nil {
		return nil, errors.Validation("invalid time_taken", err.Error())
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		attempts := s.attempts.WithTx(tx)
		questions := s.questions.WithTx(tx)
		performance := s.performance.WithTx(tx)
		gamificationSvc := s.gamification.WithTx(tx)
		recs := s.recs.WithTx(tx)

		session, err := sessions.GetForStudent(ctx, req.SessionID, studentID)
		if err != nil {
			return err
		}
		if !session.IsActive {
			return errors.Conflict("session already ended")
		}

		question, err := questions.GetByID(ctx, req.QuestionID)
		if err != nil {
			return err
		}

		made, err := attempts.CountForQuestion(ctx, studentID, req.QuestionID, req.SessionID)
		if err != nil {
			return err
		}
		if made >= MaxAttemptsPerQuestion {
			return errors.Conflict(
				fmt.Sprintf("maximum of %d attempts reached for this question", MaxAttemptsPerQuestion))
		}

		attemptNo := made + 1
		isCorrect := gradeAnswer(question.CorrectAnswer, req.ChosenAnswer)

		attempt := &models.Attempt{
			StudentID:    studentID,
			QuestionID:   req.QuestionID,
			SessionID:    req.SessionID,
			ChosenAnswer: req.ChosenAnswer,
			IsCorrect:    isCorrect,
			TimeTaken:    req.TimeTaken,
			AttemptNo:    attemptNo,
		}
		if err := attempts.Create(ctx, attempt); err != nil {
			return err
		}

		if err := s.updatePerformance(ctx, attempts, performance, studentID, question.Subject, isCorrect, req.TimeTaken); err != nil {
			return err
		}

		if err := gamificationSvc.RecordAttempt(ctx, studentID, isCorrect, attemptNo); err != nil {
			return err
		}

		if err := recs.CompleteForAttempt(ctx, studentID, req.QuestionID); err != nil {
			return err
		}

		response = buildResponse(question, isCorrect, attemptNo)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return response, nil
}

// Performance lists the student's per-subject performance summaries.
func (s *AttemptService) Performance(ctx context.Context, studentID uint) ([]*models.PerformanceSummary, error) {
	return s.performance.GetForStudent(ctx, studentID)
}

// gradeAnswer compares answers ignoring surrounding whitespace and case.
func gradeAnswer(correct, chosen string) bool {
	return strings.EqualFold(strings.TrimSpace(correct), strings.TrimSpace(chosen))
}

// updatePerformance folds the attempt into the student's per-subject
// summary and refreshes its weak-topic list from the attempt log.
func (s *AttemptService) updatePerformance(
	ctx context.Context,
	attempts *repository.AttemptRepository,
	performance *repository.PerformanceRepository,
	studentID uint,
	subject string,
	correct bool,
	timeTaken int,
) error {
	summary, err := performance.GetOrInit(ctx, studentID, subject)
	if err != nil {
		return err
	}

	summary.RecordAttempt(correct, timeTaken)

	cutoff := time.Now().UTC().Add(-s.cfg.WeakTopicWindow)
	stats, err := attempts.TopicAccuracy(ctx, studentID, cutoff, []string{subject}, s.cfg.MinTopicAttempts)
	if err != nil {
		return err
	}

	weak := make([]string, 0, len(stats))
	for _, st := range stats {
		if st.Accuracy() < s.cfg.RevisionAccuracyCutoff {
			weak = append(weak, st.Topic)
		}
	}
	summary.WeakTopics = weak

	return performance.Save(ctx, summary)
}

// buildResponse shapes the graded result. A first wrong answer earns the
// hint and one more try; a second wrong answer reveals the solution.
func buildResponse(question *models.Question, correct bool, attemptNo int) *models.SubmitAttemptResponse {
	resp := &models.SubmitAttemptResponse{
		Correct:           correct,
		AttemptNo:         attemptNo,
		AttemptsRemaining: MaxAttemptsPerQuestion - attemptNo,
	}

	switch {
	case correct:
		resp.Message = "Correct!"
		resp.AttemptsRemaining = 0
	case attemptNo < MaxAttemptsPerQuestion:
		resp.Message = "Incorrect. Try once more."
		resp.Hint = question.Hint
	default:
		resp.Message = "Incorrect. Review the solution before moving on."
		resp.Solution = &models.Solution{
			Answer:      question.CorrectAnswer,
			Explanation: solutionExplanation(question),
		}
	}

	return resp
}

// solutionExplanation prefers the authored explanation, falling back to the
// hint so the solution payload is never empty.
func solutionExplanation(q *models.Question) string {
	if q.Explanation != "" {
		return q.Explanation
	}
	if q.Hint != "" {
		return q.Hint
	}
	return "Solution explanation not available"
}
