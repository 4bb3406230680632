package validator

import (
	"github.com/shopspring/decimal"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CourseCreateRequest represents the request structure for creating courses
type CourseCreateRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=200"`
	Visible      bool            `json:"visible"`
	Description  string          `json:"description" validate:"max=5000"`
	Audience     string          `json:"audience" validate:"max=2000"`
	Requirements string          `json:"requirements" validate:"max=2000"`
	Price        decimal.Decimal `json:"price"`
	Duration     string          `json:"duration" validate:"max=100"`
	SupportHours int             `json:"support_hours" validate:"gte=0"`
	InstructorID *string         `json:"instructor_id" validate:"omitempty,max=255"`
	ImageURL     *string         `json:"image_url" validate:"omitempty,url"`

	Lessons   []LessonInput   `json:"lessons" validate:"dive"`
	Exams     []ExamInput     `json:"exams" validate:"dive"`
	Materials []MaterialInput `json:"materials" validate:"dive"`
}

// CourseUpdateRequest only touches the fields and nested collections it carries.
type CourseUpdateRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Visible      *bool            `json:"visible"`
	Description  *string          `json:"description" validate:"omitempty,max=5000"`
	Audience     *string          `json:"audience" validate:"omitempty,max=2000"`
	Requirements *string          `json:"requirements" validate:"omitempty,max=2000"`
	Price        *decimal.Decimal `json:"price"`
	Duration     *string          `json:"duration" validate:"omitempty,max=100"`
	SupportHours *int             `json:"support_hours" validate:"omitempty,gte=0"`
	InstructorID *string          `json:"instructor_id" validate:"omitempty,max=255"`
	ImageURL     *string          `json:"image_url" validate:"omitempty,url"`

	Lessons   models.Nested[LessonInput]   `json:"lessons"`
	Exams     models.Nested[ExamInput]     `json:"exams"`
	Materials models.Nested[MaterialInput] `json:"materials"`
}

// LessonInput without an id creates a lesson; with an id it updates one.
type LessonInput struct {
	ID          *string `json:"id" validate:"omitempty,uuid"`
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Position    int     `json:"order" validate:"gte=0"`
	VideoURL    *string `json:"video_url" validate:"omitempty,url"`
}

func (in LessonInput) Key() string { return deref(in.ID) }

type ExamInput struct {
	ID          *string                      `json:"id" validate:"omitempty,uuid"`
	Title       string                       `json:"title" validate:"required,min=1,max=200"`
	Description string                       `json:"description" validate:"max=5000"`
	Questions   models.Nested[QuestionInput] `json:"questions"`
}

func (in ExamInput) Key() string { return deref(in.ID) }

type QuestionInput struct {
	ID       *string                    `json:"id" validate:"omitempty,uuid"`
	Prompt   string                     `json:"prompt" validate:"required,min=1,max=2000"`
	Position int                        `json:"order" validate:"gte=0"`
	Options  models.Nested[OptionInput] `json:"options"`
}

func (in QuestionInput) Key() string { return deref(in.ID) }

type OptionInput struct {
	ID        *string `json:"id" validate:"omitempty,uuid"`
	Answer    string  `json:"answer" validate:"required,min=1,max=1000"`
	IsCorrect bool    `json:"is_correct"`
	Position  int     `json:"order" validate:"gte=0"`
}

func (in OptionInput) Key() string { return deref(in.ID) }

type MaterialInput struct {
	ID       *string `json:"id" validate:"omitempty,uuid"`
	FileName string  `json:"file_name" validate:"required,min=1,max=255"`
	MimeType string  `json:"mime_type" validate:"required,max=100"`
	URL      string  `json:"url" validate:"required,url,max=500"`
	Position int     `json:"order" validate:"gte=0"`
}

func (in MaterialInput) Key() string { return deref(in.ID) }

// RegistrationCreateRequest enrolls a student in a course, optionally
// redeeming a ticket code.
type RegistrationCreateRequest struct {
	StudentID    string  `json:"student_id" validate:"required,uuid"`
	CourseID     string  `json:"course_id" validate:"required,uuid"`
	RegisterDate string  `json:"register_date" validate:"required,datetime=2006-01-02"`
	SupportDate  string  `json:"support_date" validate:"required,datetime=2006-01-02"`
	TicketCode   *string `json:"ticket_code" validate:"omitempty,min=1,max=64"`
}

type FinishCourseRequest struct {
	ExamResult     *float64 `json:"exam_result" validate:"required,gte=0,lte=100"`
	ConclusionDate string   `json:"conclusion_date" validate:"required,datetime=2006-01-02"`
}

type StudentAnswerInput struct {
	ExamID           string `json:"exam_id" validate:"required,uuid"`
	QuestionID       string `json:"question_id" validate:"required,uuid"`
	QuestionOptionID string `json:"question_option_id" validate:"required,uuid"`
}

type StudentAnswersRequest struct {
	Answers []StudentAnswerInput `json:"answers" validate:"required,min=1,max=500,dive"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
