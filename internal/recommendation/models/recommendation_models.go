package models

import (
	"time"
)

// Recommendation priorities. Lower is more urgent.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Recommendation classes surfaced in the Type field.
const (
	TypeLectureFollowup = "lecture_followup"
	TypeWeakTopic       = "weak_topic"
	TypeRevision        = "revision"
	TypeTopicSimilar    = "topic_similar"
	TypeSimilar         = "similar"
	TypeGeneral         = "general"
)

// PracticeRecommendation is a persisted pointer from a lecture to a question
// a student should practice. StudentID nil means the row applies to every
// student. Mutated only to mark completion.
type PracticeRecommendation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	LectureID   uint       `gorm:"index;not null" json:"lecture_id"`
	StudentID   *uint      `gorm:"index" json:"student_id,omitempty"`
	Subject     string     `gorm:"not null" json:"subject"`
	Topic       string     `gorm:"size:100;not null" json:"topic"`
	QuestionID  uint       `gorm:"index;not null" json:"question_id"`
	SyllabusID  *uint      `json:"syllabus_id,omitempty"`
	Priority    int        `gorm:"default:1;not null;check:priority >= 1 AND priority <= 3" json:"priority"`
	IsCompleted bool       `gorm:"default:false;not null" json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RecommendedQuestion is one entry of a recommendation list returned to the
// caller. Reason is a required field: students and mentors rely on it to
// trust why an item was suggested.
type RecommendedQuestion struct {
	QuestionID    uint       `json:"question_id"`
	Subject       string     `json:"subject"`
	Chapter       string     `json:"chapter"`
	Topic         string     `json:"topic"`
	Difficulty    int        `json:"difficulty"`
	Type          string     `json:"type"`
	Reason        string     `json:"reason"`
	Priority      int        `json:"priority"`
	LectureID     *uint      `json:"lecture_id,omitempty"`
	LastAttempted *time.Time `json:"last_attempted,omitempty"`
}
