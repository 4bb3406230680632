package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Course struct {
	ID           string          `json:"id" gorm:"primaryKey;size:36"`
	Name         string          `json:"name" gorm:"not null;size:200"`
	Visible      bool            `json:"visible" gorm:"default:false"`
	Description  string          `json:"description" gorm:"type:text"`
	Audience     string          `json:"audience" gorm:"type:text"`
	Requirements string          `json:"requirements" gorm:"type:text"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	Duration     string          `json:"duration" gorm:"size:100"`
	SupportHours int             `json:"support_hours" gorm:"default:0"`
	InstructorID *string         `json:"instructor_id" gorm:"size:255;index"`
	ImageURL     *string         `json:"image_url" gorm:"size:500"`

	Lessons       []Lesson       `json:"lessons,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Exams         []Exam         `json:"exams,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Materials     []Material     `json:"materials,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Registrations []Registration `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (Course) TableName() string {
	return "courses"
}

// Lesson is ordered inside its course by Position.
type Lesson struct {
	ID          string  `json:"id" gorm:"primaryKey;size:36"`
	CourseID    string  `json:"course_id" gorm:"not null;size:36;index"`
	Title       string  `json:"title" gorm:"not null;size:200"`
	Description string  `json:"description" gorm:"type:text"`
	Position    int     `json:"order" gorm:"not null;default:0"`
	VideoURL    *string `json:"video_url" gorm:"size:500"`

	Progress []LessonProgress `json:"-" gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (l Lesson) GetID() string {
	return l.ID
}

func (Lesson) TableName() string {
	return "lessons"
}

type Material struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	CourseID string `json:"course_id" gorm:"not null;size:36;index"`
	FileName string `json:"file_name" gorm:"not null;size:255"`
	MimeType string `json:"mime_type" gorm:"not null;size:100"`
	URL      string `json:"url" gorm:"not null;size:500"`
	Position int    `json:"order" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m Material) GetID() string {
	return m.ID
}

func (Material) TableName() string {
	return "materials"
}
