package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

type registrationService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRegistrationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, m *metrics.Metrics) RegistrationService {
	return &registrationService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// CreateRegistration enrolls a student. The existence checks, ticket
// redemption, registration row and progress rows share one transaction.
func (s *registrationService) CreateRegistration(ctx context.Context, req *CreateRegistrationRequest) (_ *models.Registration, err error) {
	ctx, span := startSpan(ctx, "RegistrationService.CreateRegistration",
		attribute.String("student.id", req.StudentID), attribute.String("course.id", req.CourseID))
	defer func() { endSpan(span, err) }()

	s.logger.Info("Creating registration", "student_id", req.StudentID, "course_id", req.CourseID, "with_ticket", req.TicketCode != nil)

	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	registerDate, err := time.Parse(validator.DateLayout, req.RegisterDate)
	if err != nil {
		return nil, NewValidationError("register_date", "must be a date in format "+validator.DateLayout, req.RegisterDate)
	}
	supportDate, err := time.Parse(validator.DateLayout, req.SupportDate)
	if err != nil {
		return nil, NewValidationError("support_date", "must be a date in format "+validator.DateLayout, req.SupportDate)
	}

	var (
		registration *models.Registration
		lessonCount  int
	)
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		if err := s.ensureExists(ctx, tx, req.StudentID, req.CourseID); err != nil {
			return err
		}

		enrolled, err := s.repo.Registration().ExistsByStudentAndCourse(ctx, tx, req.StudentID, req.CourseID)
		if err != nil {
			return fmt.Errorf("failed to check enrollment: %w", err)
		}
		if enrolled {
			return s.alreadyEnrolled(req)
		}

		var ticketID *string
		if req.TicketCode != nil {
			id, err := s.redeemTicket(ctx, tx, *req.TicketCode)
			if err != nil {
				return err
			}
			ticketID = &id
		}

		support := datatypes.Date(supportDate)
		registration = &models.Registration{
			StudentID:    req.StudentID,
			CourseID:     req.CourseID,
			RegisterDate: datatypes.Date(registerDate),
			SupportDate:  &support,
			TicketID:     ticketID,
			DegreeStatus: models.DegreeNone,
		}
		if err := s.repo.Registration().Create(ctx, tx, registration); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return s.alreadyEnrolled(req)
			}
			return err
		}

		lessons, err := s.repo.Lesson().GetByCourse(ctx, tx, req.CourseID)
		if err != nil {
			return err
		}
		progress := make([]models.LessonProgress, 0, len(lessons))
		for _, lesson := range lessons {
			progress = append(progress, models.LessonProgress{
				RegistrationID: registration.ID,
				LessonID:       lesson.ID,
			})
		}
		lessonCount = len(progress)
		return s.repo.LessonProgress().CreateBatch(ctx, tx, progress)
	})
	if err != nil {
		s.logger.Error("Failed to create registration", "student_id", req.StudentID, "course_id", req.CourseID, "error", err)
		return nil, err
	}

	s.metrics.RegistrationCreated()
	if err := s.publisher.PublishRegistrationCreated(ctx, events.RegistrationCreatedEvent{
		RegistrationID: registration.ID,
		StudentID:      registration.StudentID,
		CourseID:       registration.CourseID,
		TicketID:       registration.TicketID,
		LessonCount:    lessonCount,
		OccurredAt:     s.now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to publish registration event", "registration_id", registration.ID, "error", err)
	}

	s.logger.Info("Registration created successfully", "registration_id", registration.ID, "lessons", lessonCount)
	return registration, nil
}

// GetRegistration loads a registration with the requested relations.
// Exam brings the course's exam tree, which the student answers against.
func (s *registrationService) GetRegistration(ctx context.Context, id string, include repositories.RegistrationInclude) (*models.Registration, error) {
	registration, err := s.repo.Registration().GetWithIncludes(ctx, nil, id, include)
	if err != nil {
		return nil, mapNotFound(err, ErrRegistrationNotFound)
	}

	if include.Answers {
		answers, err := s.repo.StudentAnswer().GetByRegistration(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		registration.Answers = answers
	}
	return registration, nil
}

func (s *registrationService) DeleteRegistration(ctx context.Context, id string) error {
	s.logger.Info("Deleting registration", "registration_id", id)
	if err := s.repo.Registration().Delete(ctx, nil, id); err != nil {
		return mapNotFound(err, ErrRegistrationNotFound)
	}
	return nil
}

func (s *registrationService) ListCourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error) {
	exists, err := s.repo.Course().ExistsByID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}
	return s.repo.Registration().ListByCourse(ctx, nil, courseID)
}

// UpdateLessonProgress marks a lesson watched; calling it again only moves the timestamp
func (s *registrationService) UpdateLessonProgress(ctx context.Context, progressID string) (*models.LessonProgress, error) {
	watchedAt := s.now().UTC()
	if err := s.repo.LessonProgress().MarkWatched(ctx, nil, progressID, watchedAt); err != nil {
		return nil, err
	}
	return s.repo.LessonProgress().GetByID(ctx, nil, progressID)
}

// CreateStudentAnswers checks every answer against the exam tree of the
// registration's course before inserting any of them.
func (s *registrationService) CreateStudentAnswers(ctx context.Context, registrationID string, req *StudentAnswersRequest) (_ []models.StudentAnswer, err error) {
	ctx, span := startSpan(ctx, "RegistrationService.CreateStudentAnswers", attribute.String("registration.id", registrationID))
	defer func() { endSpan(span, err) }()

	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	var answers []models.StudentAnswer
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		registration, err := s.repo.Registration().GetByID(ctx, tx, registrationID)
		if err != nil {
			return mapNotFound(err, ErrRegistrationNotFound)
		}

		if errs, err := s.checkAnswers(ctx, tx, registration.CourseID, req.Answers); err != nil {
			return err
		} else if len(errs) > 0 {
			return errs
		}

		answers = make([]models.StudentAnswer, 0, len(req.Answers))
		for _, in := range req.Answers {
			answers = append(answers, models.StudentAnswer{
				RegistrationID:   registrationID,
				ExamID:           in.ExamID,
				QuestionID:       in.QuestionID,
				QuestionOptionID: in.QuestionOptionID,
			})
		}
		return s.repo.StudentAnswer().CreateBatch(ctx, tx, answers)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Student answers stored", "registration_id", registrationID, "count", len(answers))
	return answers, nil
}

// checkAnswers requires option -> question -> exam -> course to be one chain
func (s *registrationService) checkAnswers(ctx context.Context, tx *gorm.DB, courseID string, answers []StudentAnswerInput) (ValidationErrors, error) {
	examIDs := make([]string, 0, len(answers))
	questionIDs := make([]string, 0, len(answers))
	optionIDs := make([]string, 0, len(answers))
	for _, a := range answers {
		examIDs = append(examIDs, a.ExamID)
		questionIDs = append(questionIDs, a.QuestionID)
		optionIDs = append(optionIDs, a.QuestionOptionID)
	}

	exams, err := s.repo.Exam().GetByIDs(ctx, tx, unique(examIDs))
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.Question().GetByIDs(ctx, tx, unique(questionIDs))
	if err != nil {
		return nil, err
	}
	options, err := s.repo.QuestionOption().GetByIDs(ctx, tx, unique(optionIDs))
	if err != nil {
		return nil, err
	}

	examCourse := make(map[string]string, len(exams))
	for _, e := range exams {
		examCourse[e.ID] = e.CourseID
	}
	questionExam := make(map[string]string, len(questions))
	for _, q := range questions {
		questionExam[q.ID] = q.ExamID
	}
	optionQuestion := make(map[string]string, len(options))
	for _, o := range options {
		optionQuestion[o.ID] = o.QuestionID
	}

	var errs ValidationErrors
	for i, a := range answers {
		path := fmt.Sprintf("answers[%d]", i)

		if course, ok := examCourse[a.ExamID]; !ok {
			errs = append(errs, ValidationError{Field: path + ".exam_id", Message: "exam does not exist", Value: a.ExamID, Rule: "exists"})
		} else if course != courseID {
			errs = append(errs, ValidationError{Field: path + ".exam_id", Message: "exam does not belong to the registration's course", Value: a.ExamID, Rule: "belongs_to"})
		}

		if exam, ok := questionExam[a.QuestionID]; !ok {
			errs = append(errs, ValidationError{Field: path + ".question_id", Message: "question does not exist", Value: a.QuestionID, Rule: "exists"})
		} else if exam != a.ExamID {
			errs = append(errs, ValidationError{Field: path + ".question_id", Message: "question does not belong to the exam", Value: a.QuestionID, Rule: "belongs_to"})
		}

		if question, ok := optionQuestion[a.QuestionOptionID]; !ok {
			errs = append(errs, ValidationError{Field: path + ".question_option_id", Message: "option does not exist", Value: a.QuestionOptionID, Rule: "exists"})
		} else if question != a.QuestionID {
			errs = append(errs, ValidationError{Field: path + ".question_option_id", Message: "option does not belong to the question", Value: a.QuestionOptionID, Rule: "belongs_to"})
		}
	}
	return errs, nil
}

// ===== HELPERS =====

func (s *registrationService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *registrationService) ensureExists(ctx context.Context, tx *gorm.DB, studentID, courseID string) error {
	exists, err := s.repo.Student().ExistsByID(ctx, tx, studentID)
	if err != nil {
		return fmt.Errorf("failed to check student: %w", err)
	}
	if !exists {
		return ErrStudentNotFound
	}

	exists, err = s.repo.Course().ExistsByID(ctx, tx, courseID)
	if err != nil {
		return fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return ErrCourseNotFound
	}
	return nil
}

// redeemTicket consumes the ticket and returns its id
func (s *registrationService) redeemTicket(ctx context.Context, tx *gorm.DB, code string) (string, error) {
	ticket, err := s.repo.Ticket().GetByCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", wrapBusinessRule(ErrTicketNotFound, "ticket_not_found", map[string]interface{}{"code": code})
		}
		return "", err
	}
	if ticket.Used {
		return "", wrapBusinessRule(ErrTicketNotValid, "ticket_used", map[string]interface{}{"code": code})
	}

	marked, err := s.repo.Ticket().MarkUsed(ctx, tx, ticket.ID)
	if err != nil {
		return "", err
	}
	if !marked {
		return "", wrapBusinessRule(ErrTicketNotValid, "ticket_used", map[string]interface{}{"code": code})
	}
	return ticket.ID, nil
}

func (s *registrationService) alreadyEnrolled(req *CreateRegistrationRequest) error {
	return wrapBusinessRule(ErrAlreadyEnrolled, "already_enrolled", map[string]interface{}{
		"student_id": req.StudentID,
		"course_id":  req.CourseID,
	})
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
