package repository

import (
	"gorm.io/gorm"
)

// EngineStore combines the attempt-log and question-bank reads into the
// surface the adaptive engine consumes.
type EngineStore struct {
	*AttemptRepository
	*QuestionRepository
}

func NewEngineStore(db *gorm.DB) *EngineStore {
	return &EngineStore{
		AttemptRepository:  NewAttemptRepository(db),
		QuestionRepository: NewQuestionRepository(db),
	}
}
