package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DegreeStatus tracks certificate issuance for a registration. Pending
// means a document is being stored under PendingDegreeCode.
type DegreeStatus string

const (
	DegreeNone    DegreeStatus = "none"
	DegreePending DegreeStatus = "pending"
	DegreeIssued  DegreeStatus = "issued"
)

// Registration links one student to one course.
type Registration struct {
	ID             string          `json:"id" gorm:"primaryKey;size:36"`
	StudentID      string          `json:"student_id" gorm:"not null;size:36;uniqueIndex:idx_registration_student_course"`
	CourseID       string          `json:"course_id" gorm:"not null;size:36;uniqueIndex:idx_registration_student_course;index"`
	RegisterDate   datatypes.Date  `json:"register_date" gorm:"not null"`
	SupportDate    *datatypes.Date `json:"support_date"`
	ConclusionDate *datatypes.Date `json:"conclusion_date"`
	ExamResult     *float64        `json:"exam_result"`
	DegreeLink     *string         `json:"degree_link" gorm:"size:500"`
	DegreeCode     *string         `json:"degree_code,omitempty" gorm:"size:32;uniqueIndex"`
	DegreeStatus   DegreeStatus    `json:"degree_status" gorm:"size:20;not null;default:'none'"`
	TicketID       *string         `json:"ticket_id" gorm:"size:36;uniqueIndex"`

	// PendingDegreeCode holds the code of a document stored but not yet issued.
	PendingDegreeCode *string `json:"-" gorm:"size:32;index"`

	Student        *Student         `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Course         *Course          `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	LessonProgress []LessonProgress `json:"lesson_progress,omitempty" gorm:"foreignKey:RegistrationID;constraint:OnDelete:CASCADE"`
	Answers        []StudentAnswer  `json:"answers,omitempty" gorm:"foreignKey:RegistrationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.DegreeStatus == "" {
		r.DegreeStatus = DegreeNone
	}
	return nil
}

func (Registration) TableName() string {
	return "registrations"
}

// LessonProgress is the watch state of one lesson for one registration.
// A nil WatchedAt means not watched yet.
type LessonProgress struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	RegistrationID string     `json:"registration_id" gorm:"not null;size:36;uniqueIndex:idx_progress_registration_lesson"`
	LessonID       string     `json:"lesson_id" gorm:"not null;size:36;uniqueIndex:idx_progress_registration_lesson;index"`
	WatchedAt      *time.Time `json:"watched_at"`

	Lesson *Lesson `json:"lesson,omitempty" gorm:"foreignKey:LessonID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *LessonProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// StudentAnswer is immutable once stored.
type StudentAnswer struct {
	ID               string `json:"id" gorm:"primaryKey;size:36"`
	RegistrationID   string `json:"registration_id" gorm:"not null;size:36;index"`
	ExamID           string `json:"exam_id" gorm:"not null;size:36;index"`
	QuestionID       string `json:"question_id" gorm:"not null;size:36;index"`
	QuestionOptionID string `json:"question_option_id" gorm:"not null;size:36;index"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *StudentAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Collaborator{},
		&Student{},
		&Ticket{},
		&Course{},
		&Lesson{},
		&Material{},
		&Exam{},
		&Question{},
		&QuestionOption{},
		&Registration{},
		&LessonProgress{},
		&StudentAnswer{},
	}
}
