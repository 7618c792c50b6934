package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
	"github.com/tachyonedu/practice-engine/internal/practice/repository"

	gamification "github.com/tachyonedu/practice-engine/internal/gamification/services"
	gamificationModels "github.com/tachyonedu/practice-engine/internal/gamification/models"
	recrepo "github.com/tachyonedu/practice-engine/internal/recommendation/repository"
	recmodels "github.com/tachyonedu/practice-engine/internal/recommendation/models"
)

type testEnv struct {
	db       *gorm.DB
	sessions *SessionService
	attempts *AttemptService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	// Unique named in-memory database per test so connections share state
	// within a test but never across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Question{},
		&models.Attempt{},
		&models.PracticeSession{},
		&models.PerformanceSummary{},
		&recmodels.PracticeRecommendation{},
		&gamificationModels.PointsLedger{},
		&gamificationModels.Streak{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	cfg := engine.DefaultConfig()
	sessionRepo := repository.NewSessionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)
	recRepo := recrepo.NewRecommendationRepository(db)

	eng := engine.New(repository.NewEngineStore(db), cfg)
	eng.SetRandom(func(int) int { return 0 })

	return &testEnv{
		db:       db,
		sessions: NewSessionService(db, sessionRepo, attemptRepo, cfg),
		attempts: NewAttemptService(
			db, eng, sessionRepo, attemptRepo, questionRepo, performanceRepo,
			gamification.NewService(db), recRepo, cfg),
	}
}

func (e *testEnv) createQuestion(t *testing.T, subject, chapter, topic string, difficulty int, answer string) *models.Question {
	t.Helper()
	q := &models.Question{
		Subject:       subject,
		Chapter:       chapter,
		Topic:         topic,
		Difficulty:    difficulty,
		QuestionText:  fmt.Sprintf("question on %s", topic),
		CorrectAnswer: answer,
		Hint:          "think harder",
		Explanation:   "because physics",
		IsActive:      true,
	}
	require.NoError(t, e.db.Create(q).Error)
	return q
}

func (e *testEnv) startSession(t *testing.T, studentID uint, mode string, subjects []string) *models.PracticeSession {
	t.Helper()
	session, err := e.sessions.StartSession(context.Background(), studentID, &models.StartSessionRequest{
		Mode:     mode,
		Subjects: subjects,
	})
	require.NoError(t, err)
	return session
}

func TestStartSession_UnknownModeRejected(t *testing.T) {
	env := setupEnv(t)

	// Calling the service directly bypasses gin binding; the mode tags
	// must still be enforced.
	_, err := env.sessions.StartSession(context.Background(), 1, &models.StartSessionRequest{
		Mode:     "freestyle",
		Subjects: []string{models.SubjectPhysics},
	})

	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Status)
}

func TestStartSession_TopicModeRequiresTopics(t *testing.T) {
	env := setupEnv(t)

	_, err := env.sessions.StartSession(context.Background(), 1, &models.StartSessionRequest{
		Mode: models.ModeTopic,
	})

	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Status)
}

func TestStartSession_ForceEndsPreviousSession(t *testing.T) {
	env := setupEnv(t)

	first := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	second := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectChemistry})

	assert.NotEqual(t, first.ID, second.ID)

	var reloaded models.PracticeSession
	require.NoError(t, env.db.First(&reloaded, first.ID).Error)
	assert.False(t, reloaded.IsActive)
	assert.NotNil(t, reloaded.EndedAt)

	// Exactly one active session remains.
	var activeCount int64
	require.NoError(t, env.db.Model(&models.PracticeSession{}).
		Where("student_id = ? AND is_active = ?", 1, true).Count(&activeCount).Error)
	assert.EqualValues(t, 1, activeCount)
}

func TestSubmitAttempt_CorrectFirstTry(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Projectile Motion", 2, "B")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})

	resp, err := env.attempts.SubmitAttempt(context.Background(), 1, &models.SubmitAttemptRequest{
		SessionID:    session.ID,
		QuestionID:   q.ID,
		ChosenAnswer: "B",
		TimeTaken:    30,
	})

	require.NoError(t, err)
	assert.True(t, resp.Correct)
	assert.Equal(t, 1, resp.AttemptNo)
	assert.Equal(t, 0, resp.AttemptsRemaining)
	assert.Empty(t, resp.Hint)
	assert.Nil(t, resp.Solution)
}

func TestSubmitAttempt_GradingIgnoresCaseAndWhitespace(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "Newton")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})

	resp, err := env.attempts.SubmitAttempt(context.Background(), 1, &models.SubmitAttemptRequest{
		SessionID:    session.ID,
		QuestionID:   q.ID,
		ChosenAnswer: "  newton ",
		TimeTaken:    10,
	})

	require.NoError(t, err)
	assert.True(t, resp.Correct)
}

func TestSubmitAttempt_HintThenSolutionThenRejection(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	// First wrong answer: hint, one attempt left.
	resp, err := env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "C", TimeTaken: 20,
	})
	require.NoError(t, err)
	assert.False(t, resp.Correct)
	assert.Equal(t, 1, resp.AttemptNo)
	assert.Equal(t, 1, resp.AttemptsRemaining)
	assert.Equal(t, "think harder", resp.Hint)
	assert.Nil(t, resp.Solution)

	// Second wrong answer: solution revealed.
	resp, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "D", TimeTaken: 25,
	})
	require.NoError(t, err)
	assert.False(t, resp.Correct)
	assert.Equal(t, 2, resp.AttemptNo)
	assert.Equal(t, 0, resp.AttemptsRemaining)
	require.NotNil(t, resp.Solution)
	assert.Equal(t, "A", resp.Solution.Answer)

	// Third attempt: rejected, no row written.
	_, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "A", TimeTaken: 5,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.Status)

	var count int64
	require.NoError(t, env.db.Model(&models.Attempt{}).
		Where("student_id = ? AND question_id = ? AND session_id = ?", 1, q.ID, session.ID).
		Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSubmitAttempt_SolutionExplanationFallsBackToHint(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	q := &models.Question{
		Subject:       models.SubjectPhysics,
		Chapter:       "Kinematics",
		Topic:         "Friction",
		Difficulty:    2,
		QuestionText:  "question without explanation",
		CorrectAnswer: "A",
		Hint:          "remember the friction coefficient",
		IsActive:      true,
	}
	require.NoError(t, env.db.Create(q).Error)

	var resp *models.SubmitAttemptResponse
	var err error
	for _, chosen := range []string{"B", "C"} {
		resp, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
			SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: chosen, TimeTaken: 10,
		})
		require.NoError(t, err)
	}

	require.NotNil(t, resp.Solution)
	assert.Equal(t, "remember the friction coefficient", resp.Solution.Explanation)
}

func TestSubmitAttempt_SolutionExplanationPlaceholder(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	q := &models.Question{
		Subject:       models.SubjectPhysics,
		Chapter:       "Kinematics",
		Topic:         "Friction",
		Difficulty:    2,
		QuestionText:  "question without hint or explanation",
		CorrectAnswer: "A",
		IsActive:      true,
	}
	require.NoError(t, env.db.Create(q).Error)

	var resp *models.SubmitAttemptResponse
	var err error
	for _, chosen := range []string{"B", "C"} {
		resp, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
			SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: chosen, TimeTaken: 10,
		})
		require.NoError(t, err)
	}

	require.NotNil(t, resp.Solution)
	assert.Equal(t, "Solution explanation not available", resp.Solution.Explanation)
}

func TestSubmitAttempt_PerformanceSummaryMatchesRecomputation(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	times := []int{30, 50, 20, 40}
	answers := []string{"A", "B", "A", "A"} // correct, wrong, correct, correct
	for i, taken := range times {
		q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")
		_, err := env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
			SessionID:    session.ID,
			QuestionID:   q.ID,
			ChosenAnswer: answers[i],
			TimeTaken:    taken,
		})
		require.NoError(t, err)
	}

	var summary models.PerformanceSummary
	require.NoError(t, env.db.
		Where("student_id = ? AND subject = ?", 1, models.SubjectPhysics).
		First(&summary).Error)

	assert.Equal(t, 4, summary.TotalAttempts)
	assert.Equal(t, 3, summary.CorrectAttempts)
	assert.InDelta(t, 0.75, summary.Accuracy, 1e-9)

	// The incremental average must equal a from-scratch recomputation.
	expectedAvg := float64(30+50+20+40) / 4
	assert.InDelta(t, expectedAvg, summary.AvgTime, 1e-9)
}

func TestSubmitAttempt_AwardsPoints(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})

	_, err := env.attempts.SubmitAttempt(context.Background(), 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "A", TimeTaken: 10,
	})
	require.NoError(t, err)

	var ledger gamificationModels.PointsLedger
	require.NoError(t, env.db.Where("student_id = ?", 1).First(&ledger).Error)
	// First attempt (+2) and correct on first try (+5).
	assert.Equal(t, 7, ledger.TotalPoints)
}

func TestSubmitAttempt_CompletesStudentRecommendation(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})

	studentID := uint(1)
	rec := &recmodels.PracticeRecommendation{
		LectureID:  1,
		StudentID:  &studentID,
		Subject:    models.SubjectPhysics,
		Topic:      "Friction",
		QuestionID: q.ID,
		Priority:   recmodels.PriorityHigh,
	}
	require.NoError(t, env.db.Create(rec).Error)

	globalRec := &recmodels.PracticeRecommendation{
		LectureID:  1,
		Subject:    models.SubjectPhysics,
		Topic:      "Friction",
		QuestionID: q.ID,
		Priority:   recmodels.PriorityHigh,
	}
	require.NoError(t, env.db.Create(globalRec).Error)

	_, err := env.attempts.SubmitAttempt(context.Background(), 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "A", TimeTaken: 10,
	})
	require.NoError(t, err)

	var personal, global recmodels.PracticeRecommendation
	require.NoError(t, env.db.First(&personal, rec.ID).Error)
	require.NoError(t, env.db.First(&global, globalRec.ID).Error)
	assert.True(t, personal.IsCompleted)
	assert.False(t, global.IsCompleted, "rows addressed to all students stay pending")
}

func TestEndSession_ReturnsAggregates(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	q1 := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")
	q2 := env.createQuestion(t, models.SubjectPhysics, "Kinematics", "Friction", 2, "A")

	_, err := env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q1.ID, ChosenAnswer: "A", TimeTaken: 10,
	})
	require.NoError(t, err)
	_, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q2.ID, ChosenAnswer: "B", TimeTaken: 15,
	})
	require.NoError(t, err)

	summary, err := env.sessions.EndSession(ctx, 1, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 1, summary.CorrectAnswers)
	assert.InDelta(t, 0.5, summary.Accuracy, 1e-9)
}

func TestEndSession_AlreadyEndedConflicts(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	_, err := env.sessions.EndSession(ctx, 1, session.ID)
	require.NoError(t, err)

	_, err = env.sessions.EndSession(ctx, 1, session.ID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.Status)
}

func TestEndSession_WrongStudentNotFound(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})

	_, err := env.sessions.EndSession(context.Background(), 2, session.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestNextQuestion_ServesInScopeAndSignalsExhaustion(t *testing.T) {
	env := setupEnv(t)
	q := env.createQuestion(t, models.SubjectChemistry, "Bonding", "Ionic Bonds", 2, "A")
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectChemistry})
	ctx := context.Background()

	next, err := env.attempts.NextQuestion(ctx, 1, session.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, q.ID, next.ID)
	assert.Equal(t, 0, next.AttemptsMade)
	assert.Equal(t, 2, next.MaxAttempts)
	assert.True(t, next.HintAvailable)

	// Burn the only question, then the pool is exhausted.
	_, err = env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
		SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: "A", TimeTaken: 5,
	})
	require.NoError(t, err)

	next, err = env.attempts.NextQuestion(ctx, 1, session.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestWeakTopics_OnlyBelowCutoff(t *testing.T) {
	env := setupEnv(t)
	session := env.startSession(t, 1, models.ModeMultiSubject, []string{models.SubjectPhysics})
	ctx := context.Background()

	// Friction: 1/3 correct (weak). Kinematics: 3/3 correct (fine).
	for i, topic := range []string{"Friction", "Friction", "Friction", "Kinematics", "Kinematics", "Kinematics"} {
		answer := "A"
		chosen := "A"
		if topic == "Friction" && i > 0 {
			chosen = "B"
		}
		q := env.createQuestion(t, models.SubjectPhysics, "Kinematics", topic, 2, answer)
		_, err := env.attempts.SubmitAttempt(ctx, 1, &models.SubmitAttemptRequest{
			SessionID: session.ID, QuestionID: q.ID, ChosenAnswer: chosen, TimeTaken: 10,
		})
		require.NoError(t, err)
	}

	stats, err := env.sessions.WeakTopics(ctx, 1, []string{models.SubjectPhysics})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Friction", stats[0].Topic)
	assert.Equal(t, 3, stats[0].Attempts)
	assert.InDelta(t, 1.0/3.0, stats[0].Accuracy, 1e-9)
}
