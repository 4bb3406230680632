package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Exam belongs to a course. A course may carry several exams; limiting it
// to one is a client concern.
type Exam struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	CourseID    string `json:"course_id" gorm:"not null;size:36;index"`
	Title       string `json:"title" gorm:"not null;size:200"`
	Description string `json:"description" gorm:"type:text"`

	Questions []Question      `json:"questions,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
	Answers   []StudentAnswer `json:"-" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Exam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (e Exam) GetID() string {
	return e.ID
}

func (Exam) TableName() string {
	return "exams"
}

type Question struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	ExamID   string `json:"exam_id" gorm:"not null;size:36;index"`
	Prompt   string `json:"prompt" gorm:"type:text;not null"`
	Position int    `json:"order" gorm:"not null;default:0"`

	Options []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	Answers []StudentAnswer  `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func (q Question) GetID() string {
	return q.ID
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	QuestionID string `json:"question_id" gorm:"not null;size:36;index"`
	Answer     string `json:"answer" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	Position   int    `json:"order" gorm:"not null;default:0"`

	Answers []StudentAnswer `json:"-" gorm:"foreignKey:QuestionOptionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *QuestionOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (o QuestionOption) GetID() string {
	return o.ID
}

func (QuestionOption) TableName() string {
	return "question_options"
}
