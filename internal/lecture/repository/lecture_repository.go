package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/lecture/models"
)

// LectureRepository reads lecture and syllabus-link records authored by the
// content workflow.
type LectureRepository struct {
	db *gorm.DB
}

func NewLectureRepository(db *gorm.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

func (r *LectureRepository) GetByID(ctx context.Context, id uint) (*models.Lecture, error) {
	var lecture models.Lecture
	result := r.db.WithContext(ctx).First(&lecture, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("lecture")
		}
		return nil, errors.Internal("failed to fetch lecture", result.Error.Error())
	}
	return &lecture, nil
}

// TopicsForLecture returns the syllabus topics attached to a lecture, with
// syllabus items preloaded.
func (r *LectureRepository) TopicsForLecture(ctx context.Context, lectureID uint) ([]*models.LectureTopic, error) {
	var topics []*models.LectureTopic
	result := r.db.WithContext(ctx).
		Where("lecture_id = ?", lectureID).
		Preload("SyllabusItem").
		Find(&topics)
	if result.Error != nil {
		return nil, errors.Internal("failed to fetch lecture topics", result.Error.Error())
	}
	return topics, nil
}
