package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

func registrationRequest(student *models.Student, course *models.Course, ticket *string) *CreateRegistrationRequest {
	return &CreateRegistrationRequest{
		StudentID:    student.ID,
		CourseID:     course.ID,
		RegisterDate: "2024-03-01",
		SupportDate:  "2025-03-01",
		TicketCode:   ticket,
	}
}

func TestRegistrationService_CreatesOneProgressRowPerLesson(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 4)
	student := f.seedStudent(t, "Ana")

	registration, err := f.registrations().CreateRegistration(context.Background(), registrationRequest(student, course, nil))
	require.NoError(t, err)

	assert.Equal(t, models.DegreeNone, registration.DegreeStatus)
	assert.Nil(t, registration.ConclusionDate)
	assert.Nil(t, registration.ExamResult)
	assert.Nil(t, registration.DegreeLink)
	assert.Equal(t, date("2024-03-01"), registration.RegisterDate)

	progress, err := f.repo.LessonProgress().GetByRegistration(context.Background(), nil, registration.ID)
	require.NoError(t, err)
	require.Len(t, progress, 4)
	seen := map[string]bool{}
	for i, p := range progress {
		assert.Nil(t, p.WatchedAt)
		assert.Equal(t, course.Lessons[i].ID, p.LessonID)
		assert.False(t, seen[p.LessonID])
		seen[p.LessonID] = true
	}

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.TopicRegistrationCreated, published[0].Topic)
	assert.Equal(t, 4, published[0].Payload.(events.RegistrationCreatedEvent).LessonCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RegistrationsCreated))
}

func TestRegistrationService_DuplicateFailsWithoutWrites(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 2)
	student := f.seedStudent(t, "Ana")
	f.register(t, student, course)
	f.seedTicket(t, "PROMO10")

	_, err := f.registrations().CreateRegistration(context.Background(), registrationRequest(student, course, strPtr("PROMO10")))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	var ruleErr *BusinessRuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "already_enrolled", ruleErr.Rule)

	assert.Equal(t, int64(1), f.count(t, &models.Registration{}, ""))
	assert.Equal(t, int64(2), f.count(t, &models.LessonProgress{}, ""))
	assert.Equal(t, int64(0), f.count(t, &models.Ticket{}, "used = ?", true))
}

func TestRegistrationService_TicketIsConsumedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	ticket := f.seedTicket(t, "ONCE")

	first, err := f.registrations().CreateRegistration(ctx, registrationRequest(f.seedStudent(t, "Ana"), course, strPtr("ONCE")))
	require.NoError(t, err)
	require.NotNil(t, first.TicketID)
	assert.Equal(t, ticket.ID, *first.TicketID)

	stored, err := f.repo.Ticket().GetByID(ctx, nil, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used)

	_, err = f.registrations().CreateRegistration(ctx, registrationRequest(f.seedStudent(t, "Bia"), course, strPtr("ONCE")))
	assert.ErrorIs(t, err, ErrTicketNotValid)
	assert.Equal(t, int64(1), f.count(t, &models.Registration{}, ""))
}

func TestRegistrationService_UnknownTicket(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 1)

	_, err := f.registrations().CreateRegistration(context.Background(), registrationRequest(f.seedStudent(t, "Ana"), course, strPtr("NOPE")))

	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.Equal(t, int64(0), f.count(t, &models.Registration{}, ""))
}

func TestRegistrationService_FailureAfterTicketRollsBack(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 2)
	ticket := f.seedTicket(t, "ROLLBACK")

	boom := errors.New("progress insert failed")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_progress", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "lesson_progress" {
			_ = tx.AddError(boom)
		}
	}))

	_, err := f.registrations().CreateRegistration(context.Background(), registrationRequest(f.seedStudent(t, "Ana"), course, strPtr("ROLLBACK")))
	assert.ErrorIs(t, err, boom)

	stored, err := f.repo.Ticket().GetByID(context.Background(), f.db, ticket.ID)
	require.NoError(t, err)
	assert.False(t, stored.Used)
	assert.Equal(t, int64(0), f.count(t, &models.Registration{}, ""))
	assert.Empty(t, f.publisher.GetPublishedEvents())
}

func TestRegistrationService_MissingStudentOrCourse(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 1)
	student := f.seedStudent(t, "Ana")
	ghost := &models.Student{ID: "0f6c3c52-1111-4222-8333-444455556666"}

	_, err := f.registrations().CreateRegistration(context.Background(), registrationRequest(ghost, course, nil))
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.registrations().CreateRegistration(context.Background(), registrationRequest(student, &models.Course{ID: ghost.ID}, nil))
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestRegistrationService_ValidatesShape(t *testing.T) {
	f := newFixture(t)

	_, err := f.registrations().CreateRegistration(context.Background(), &CreateRegistrationRequest{
		StudentID:    "not-a-uuid",
		CourseID:     "0f6c3c52-1111-4222-8333-444455556666",
		RegisterDate: "01/03/2024",
	})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]bool{}
	for _, v := range verrs {
		fields[v.Field] = true
	}
	assert.True(t, fields["student_id"])
	assert.True(t, fields["register_date"])
	assert.True(t, fields["support_date"])
}

func TestRegistrationService_UpdateLessonProgressIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	progress, err := f.repo.LessonProgress().GetByRegistration(ctx, nil, registration.ID)
	require.NoError(t, err)

	svc := f.registrations()
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first, err := svc.UpdateLessonProgress(ctx, progress[0].ID)
	require.NoError(t, err)
	require.NotNil(t, first.WatchedAt)
	assert.True(t, fixed.Equal(*first.WatchedAt))

	second, err := svc.UpdateLessonProgress(ctx, progress[0].ID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(*second.WatchedAt))

	_, err = svc.UpdateLessonProgress(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRegistrationService_CreateStudentAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	exam := course.Exams[0]
	question := exam.Questions[0]

	answers, err := f.registrations().CreateStudentAnswers(ctx, registration.ID, &StudentAnswersRequest{
		Answers: []StudentAnswerInput{{ExamID: exam.ID, QuestionID: question.ID, QuestionOptionID: question.Options[0].ID}},
	})
	require.NoError(t, err)
	require.Len(t, answers, 1)

	// resubmitting duplicates rows
	_, err = f.registrations().CreateStudentAnswers(ctx, registration.ID, &StudentAnswersRequest{
		Answers: []StudentAnswerInput{{ExamID: exam.ID, QuestionID: question.ID, QuestionOptionID: question.Options[1].ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.count(t, &models.StudentAnswer{}, "registration_id = ?", registration.ID))
}

func TestRegistrationService_CreateStudentAnswersRejectsForeignOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	other := f.seedCourse(t, 0)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	exam := course.Exams[0]
	question := exam.Questions[0]
	foreignOption := other.Exams[0].Questions[0].Options[0]

	_, err := f.registrations().CreateStudentAnswers(ctx, registration.ID, &StudentAnswersRequest{
		Answers: []StudentAnswerInput{
			{ExamID: exam.ID, QuestionID: question.ID, QuestionOptionID: question.Options[0].ID},
			{ExamID: exam.ID, QuestionID: question.ID, QuestionOptionID: foreignOption.ID},
		},
	})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "answers[1].question_option_id", verrs[0].Field)
	assert.Equal(t, "belongs_to", verrs[0].Rule)
	assert.Equal(t, int64(0), f.count(t, &models.StudentAnswer{}, ""))
}

func TestRegistrationService_GetIncludesExamAndAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	exam := course.Exams[0]
	question := exam.Questions[0]

	_, err := f.registrations().CreateStudentAnswers(ctx, registration.ID, &StudentAnswersRequest{
		Answers: []StudentAnswerInput{{ExamID: exam.ID, QuestionID: question.ID, QuestionOptionID: question.Options[1].ID}},
	})
	require.NoError(t, err)

	got, err := f.registrations().GetRegistration(ctx, registration.ID, repositories.RegistrationInclude{Exam: true, Answers: true})
	require.NoError(t, err)

	require.NotNil(t, got.Course)
	require.Len(t, got.Course.Exams, 1)
	require.Len(t, got.Course.Exams[0].Questions, 1)
	options := got.Course.Exams[0].Questions[0].Options
	require.Len(t, options, 2)
	assert.Equal(t, "4", options[0].Answer)
	assert.Equal(t, "5", options[1].Answer)

	require.Len(t, got.Answers, 1)
	assert.Equal(t, question.Options[1].ID, got.Answers[0].QuestionOptionID)

	plain, err := f.registrations().GetRegistration(ctx, registration.ID, repositories.RegistrationInclude{})
	require.NoError(t, err)
	assert.Nil(t, plain.Course)
	assert.Nil(t, plain.Answers)
}

func TestRegistrationService_GetWithIncludesAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 3)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)

	got, err := f.registrations().GetRegistration(ctx, registration.ID, repositories.RegistrationInclude{LessonProgress: true})
	require.NoError(t, err)
	require.Len(t, got.LessonProgress, 3)
	require.NotNil(t, got.LessonProgress[0].Lesson)
	assert.Equal(t, "Lesson 1", got.LessonProgress[0].Lesson.Title)
	require.NotNil(t, got.Course)
	assert.Empty(t, got.Course.Exams)
	assert.Nil(t, got.Answers)

	list, err := f.registrations().ListCourseRegistrations(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].Student.Name)

	require.NoError(t, f.registrations().DeleteRegistration(ctx, registration.ID))
	assert.Equal(t, int64(0), f.count(t, &models.LessonProgress{}, ""))

	_, err = f.registrations().GetRegistration(ctx, registration.ID, repositories.RegistrationInclude{})
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}
