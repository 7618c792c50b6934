package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subjects taught by the institute.
const (
	SubjectPhysics     = "Physics"
	SubjectChemistry   = "Chemistry"
	SubjectBiology     = "Biology"
	SubjectMathematics = "Mathematics"
)

// Practice session modes.
const (
	ModeAdaptive     = "adaptive"
	ModeTopic        = "topic"
	ModeChapter      = "chapter"
	ModeMultiChapter = "multi_chapter"
	ModeMultiSubject = "multi_subject"
	ModeRevision     = "revision"
)

// Question is one item in the question bank. Immutable after creation
// except for soft deactivation via IsActive.
type Question struct {
	ID            uint                                 `gorm:"primaryKey" json:"id"`
	Subject       string                               `gorm:"index;not null" json:"subject"`
	Chapter       string                               `gorm:"size:100;not null" json:"chapter"`
	Topic         string                               `gorm:"size:100;index;not null" json:"topic"`
	Difficulty    int                                  `gorm:"not null;check:difficulty >= 1 AND difficulty <= 5" json:"difficulty"`
	QuestionText  string                               `gorm:"type:text;not null" json:"question_text"`
	Options       datatypes.JSONType[map[string]string] `json:"options"` // MCQ options keyed A-D, empty for free answer
	CorrectAnswer string                               `gorm:"type:text;not null" json:"-"`
	Hint          string                               `gorm:"type:text" json:"-"`
	Explanation   string                               `gorm:"type:text" json:"-"`
	Source        string                               `gorm:"size:100" json:"source,omitempty"`
	IsActive      bool                                 `gorm:"default:true;not null" json:"is_active"`
	CreatedAt     time.Time                            `json:"created_at"`
	UpdatedAt     time.Time                            `json:"updated_at"`
}

// Attempt records one submission against one question within one session.
// Rows are append-only; the unique index makes the per-question attempt cap
// safe against concurrent submissions.
type Attempt struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentID    uint      `gorm:"index;not null;uniqueIndex:uniq_attempt_slot" json:"student_id"`
	QuestionID   uint      `gorm:"not null;uniqueIndex:uniq_attempt_slot" json:"question_id"`
	SessionID    uint      `gorm:"index;not null;uniqueIndex:uniq_attempt_slot" json:"session_id"`
	ChosenAnswer string    `gorm:"type:text;not null" json:"chosen_answer"`
	IsCorrect    bool      `gorm:"not null" json:"is_correct"`
	TimeTaken    int       `gorm:"not null" json:"time_taken"` // seconds
	AttemptNo    int       `gorm:"not null;uniqueIndex:uniq_attempt_slot;check:attempt_no >= 1 AND attempt_no <= 2" json:"attempt_no"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`

	Question *Question `gorm:"foreignKey:QuestionID" json:"-"`
}

// PracticeSession scopes a run of questions for one student. At most one
// session per student is active at a time.
type PracticeSession struct {
	ID             uint                         `gorm:"primaryKey" json:"id"`
	StudentID      uint                         `gorm:"index;not null" json:"student_id"`
	Mode           string                       `gorm:"size:20;not null" json:"mode"`
	Subjects       datatypes.JSONSlice[string]  `json:"subjects"`
	Chapters       datatypes.JSONSlice[string]  `json:"chapters"`
	Topics         datatypes.JSONSlice[string]  `json:"topics"`
	DeviceType     string                       `gorm:"size:20;default:personal;not null" json:"device_type"`
	StartedAt      time.Time                    `json:"started_at"`
	EndedAt        *time.Time                   `json:"ended_at,omitempty"`
	TotalQuestions int                          `gorm:"default:0;not null" json:"total_questions"`
	CorrectAnswers int                          `gorm:"default:0;not null" json:"correct_answers"`
	IsActive       bool                         `gorm:"default:true;not null" json:"is_active"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// Accuracy returns correct/total for an ended session.
func (s *PracticeSession) Accuracy() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) / float64(s.TotalQuestions)
}

// PerformanceSummary is a per student-subject materialized view over the
// attempt log. It is maintained incrementally, exactly once per attempt,
// and must stay equal to a from-scratch recomputation.
type PerformanceSummary struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	StudentID       uint                        `gorm:"not null;uniqueIndex:uniq_student_subject" json:"student_id"`
	Subject         string                      `gorm:"not null;uniqueIndex:uniq_student_subject" json:"subject"`
	Accuracy        float64                     `gorm:"default:0;not null;check:accuracy >= 0 AND accuracy <= 1" json:"accuracy"`
	AvgTime         float64                     `gorm:"default:0;not null" json:"avg_time"` // seconds per question
	TotalAttempts   int                         `gorm:"default:0;not null" json:"total_attempts"`
	CorrectAttempts int                         `gorm:"default:0;not null" json:"correct_attempts"`
	WeakTopics      datatypes.JSONSlice[string] `json:"weak_topics"`
	LastUpdated     time.Time                   `json:"last_updated"`
}

// RecordAttempt folds one attempt into the running aggregates using the
// weighted-average recurrence. Must be applied in attempt order.
func (p *PerformanceSummary) RecordAttempt(correct bool, timeTaken int) {
	p.TotalAttempts++
	if correct {
		p.CorrectAttempts++
	}

	p.Accuracy = float64(p.CorrectAttempts) / float64(p.TotalAttempts)

	n := float64(p.TotalAttempts)
	if p.TotalAttempts == 1 {
		p.AvgTime = float64(timeTaken)
	} else {
		p.AvgTime = ((p.AvgTime * (n - 1)) + float64(timeTaken)) / n
	}

	p.LastUpdated = time.Now().UTC()
}

// Request/Response Models

type StartSessionRequest struct {
	Mode       string   `json:"mode" binding:"required,oneof=adaptive topic chapter multi_chapter multi_subject revision"`
	Subjects   []string `json:"subjects"`
	Chapters   []string `json:"chapters"`
	Topics     []string `json:"topics"`
	DeviceType string   `json:"device_type" binding:"omitempty,oneof=kiosk personal"`
}

type StartSessionResponse struct {
	SessionID uint   `json:"session_id"`
	Mode      string `json:"mode"`
	Message   string `json:"message"`
}

type SessionSummary struct {
	TotalQuestions  int     `json:"total_questions"`
	CorrectAnswers  int     `json:"correct_answers"`
	Accuracy        float64 `json:"accuracy"`
	DurationMinutes int     `json:"duration_minutes"`
}

type SubmitAttemptRequest struct {
	SessionID    uint   `json:"session_id" binding:"required"`
	QuestionID   uint   `json:"question_id" binding:"required"`
	ChosenAnswer string `json:"chosen_answer" binding:"required"`
	TimeTaken    int    `json:"time_taken" binding:"gte=0"`
}

type Solution struct {
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

type SubmitAttemptResponse struct {
	Correct           bool      `json:"correct"`
	AttemptNo         int       `json:"attempt_no"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	Message           string    `json:"message"`
	Hint              string    `json:"hint,omitempty"`
	Solution          *Solution `json:"solution,omitempty"`
}

// NextQuestion is the payload served per "next question" request. The
// correct answer and hint body are withheld; only hint availability leaks.
type NextQuestion struct {
	ID            uint              `json:"id"`
	Subject       string            `json:"subject"`
	Chapter       string            `json:"chapter"`
	Topic         string            `json:"topic"`
	Difficulty    int               `json:"difficulty"`
	QuestionText  string            `json:"question_text"`
	Options       map[string]string `json:"options,omitempty"`
	HintAvailable bool              `json:"hint_available"`
	AttemptsMade  int               `json:"attempts_made"`
	MaxAttempts   int               `json:"max_attempts"`
}

// WeakTopicStat is one row of the weak-topic analysis surfaced to students
// and mentors.
type WeakTopicStat struct {
	Subject  string  `json:"subject"`
	Topic    string  `json:"topic"`
	Attempts int     `json:"attempts"`
	Accuracy float64 `json:"accuracy"`
}
