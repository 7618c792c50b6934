package models

import (
	"time"
)

// Lecture is the minimal record the recommendation generator needs about an
// authored lecture. The full authoring workflow lives elsewhere.
type Lecture struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Subject   string    `gorm:"index;not null" json:"subject"`
	Chapter   string    `gorm:"size:100" json:"chapter"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyllabusItem is one subject/chapter/topic entry of the institute syllabus.
type SyllabusItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Subject   string    `gorm:"not null;uniqueIndex:uniq_syllabus_entry" json:"subject"`
	Chapter   string    `gorm:"size:100;not null;uniqueIndex:uniq_syllabus_entry" json:"chapter"`
	Topic     string    `gorm:"size:100;not null;uniqueIndex:uniq_syllabus_entry" json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

// LectureTopic links a lecture to a syllabus topic it covered.
type LectureTopic struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LectureID  uint      `gorm:"not null;uniqueIndex:uniq_lecture_topic" json:"lecture_id"`
	SyllabusID uint      `gorm:"not null;uniqueIndex:uniq_lecture_topic" json:"syllabus_id"`
	CreatedAt  time.Time `json:"created_at"`

	SyllabusItem *SyllabusItem `gorm:"foreignKey:SyllabusID" json:"syllabus_item,omitempty"`
}
