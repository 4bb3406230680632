package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// courseImageTypes maps accepted image content types to key extensions
var courseImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type courseService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	reconciler *Reconciler
	blobs      storage.BlobStore
	metrics    *metrics.Metrics
}

func NewCourseService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, reconciler *Reconciler, blobs storage.BlobStore, m *metrics.Metrics) CourseService {
	if reconciler == nil {
		reconciler = NewReconciler(DefaultReconcileConcurrency)
	}
	return &courseService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		reconciler: reconciler,
		blobs:      blobs,
		metrics:    m,
	}
}

// ===== CORE OPERATIONS =====

func (s *courseService) CreateCourse(ctx context.Context, req *CreateCourseRequest, actor *models.User) (_ *CourseResponse, err error) {
	ctx, span := startSpan(ctx, "CourseService.CreateCourse")
	defer func() { endSpan(span, err) }()

	s.logger.Info("Creating course", "name", req.Name, "lessons", len(req.Lessons), "exams", len(req.Exams))

	if errs := s.validator.GetBusinessValidator().ValidateCourseCreate(req); len(errs) > 0 {
		return nil, errs
	}

	instructorID := req.InstructorID
	if instructorID == nil && actor != nil && actor.Role == models.RoleTeacher {
		instructorID = &actor.ID
	}
	if instructorID != nil {
		if err := s.ensureInstructor(ctx, *instructorID); err != nil {
			return nil, err
		}
	}

	course := &models.Course{
		Name:         req.Name,
		Visible:      req.Visible,
		Description:  req.Description,
		Audience:     req.Audience,
		Requirements: req.Requirements,
		Price:        req.Price,
		Duration:     req.Duration,
		SupportHours: req.SupportHours,
		InstructorID: instructorID,
		ImageURL:     req.ImageURL,
	}

	var changes ReconcileResult
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Course().Create(ctx, tx, course); err != nil {
			return err
		}

		guard := newTxGuard(tx)
		result, _, err := s.reconcileLessons(ctx, guard, course.ID, nil, models.ReplaceWith(req.Lessons...))
		if err != nil {
			return err
		}
		changes.Add(result)

		if result, err = s.reconcileExams(ctx, guard, course.ID, nil, models.ReplaceWith(req.Exams...)); err != nil {
			return err
		}
		changes.Add(result)

		if result, err = s.reconcileMaterials(ctx, guard, course.ID, nil, models.ReplaceWith(req.Materials...)); err != nil {
			return err
		}
		changes.Add(result)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create course", "error", err)
		return nil, err
	}

	s.metrics.Reconciled(changes.Created, changes.Updated, changes.Deleted)
	s.logger.Info("Course created successfully", "course_id", course.ID, "created", changes.Created)

	created, err := s.GetCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return &CourseResponse{Course: created, Changes: &changes}, nil
}

// UpdateCourse writes the carried scalars and reconciles every nested
// collection the request sets. Lessons created here get progress rows for
// every existing registration of the course.
func (s *courseService) UpdateCourse(ctx context.Context, id string, req *UpdateCourseRequest, actor *models.User) (_ *CourseResponse, err error) {
	ctx, span := startSpan(ctx, "CourseService.UpdateCourse", attribute.String("course.id", id))
	defer func() { endSpan(span, err) }()

	s.logger.Info("Updating course", "course_id", id,
		"lessons_set", req.Lessons.IsSet(), "exams_set", req.Exams.IsSet(), "materials_set", req.Materials.IsSet())

	if errs := s.validator.GetBusinessValidator().ValidateCourseUpdate(req); len(errs) > 0 {
		return nil, errs
	}

	var changes ReconcileResult
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		course, err := s.repo.Course().GetByID(ctx, tx, id)
		if err != nil {
			return mapNotFound(err, ErrCourseNotFound)
		}
		if err := s.checkCourseOwnership(course, actor, "update"); err != nil {
			return err
		}

		if req.InstructorID != nil && (course.InstructorID == nil || *course.InstructorID != *req.InstructorID) {
			if err := s.ensureInstructor(ctx, *req.InstructorID); err != nil {
				return err
			}
		}
		applyCourseUpdate(course, req)
		if err := s.repo.Course().Update(ctx, tx, course); err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}

		guard := newTxGuard(tx)

		if req.Lessons.IsSet() {
			existing, err := s.repo.Lesson().GetByCourse(ctx, tx, id)
			if err != nil {
				return err
			}
			result, createdIDs, err := s.reconcileLessons(ctx, guard, id, existing, req.Lessons)
			if err != nil {
				return err
			}
			changes.Add(result)

			if err := s.backfillProgress(ctx, tx, id, createdIDs); err != nil {
				return err
			}
		}

		if req.Exams.IsSet() {
			existing, err := s.repo.Exam().GetByCourseWithQuestions(ctx, tx, id)
			if err != nil {
				return err
			}
			result, err := s.reconcileExams(ctx, guard, id, existing, req.Exams)
			if err != nil {
				return err
			}
			changes.Add(result)
		}

		if req.Materials.IsSet() {
			existing, err := s.repo.Material().GetByCourse(ctx, tx, id)
			if err != nil {
				return err
			}
			result, err := s.reconcileMaterials(ctx, guard, id, existing, req.Materials)
			if err != nil {
				return err
			}
			changes.Add(result)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update course", "course_id", id, "error", err)
		return nil, err
	}

	s.repo.Lesson().InvalidateCourse(ctx, id)
	s.metrics.Reconciled(changes.Created, changes.Updated, changes.Deleted)
	s.logger.Info("Course updated successfully", "course_id", id,
		"created", changes.Created, "updated", changes.Updated, "deleted", changes.Deleted)

	updated, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CourseResponse{Course: updated, Changes: &changes}, nil
}

func (s *courseService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.Course().GetWithDetails(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, ErrCourseNotFound)
	}
	return course, nil
}

func (s *courseService) DeleteCourse(ctx context.Context, id string, actor *models.User) error {
	s.logger.Info("Deleting course", "course_id", id)

	if actor != nil && actor.Role != models.RoleAdmin {
		return NewPermissionError(actor.ID, id, "course", "delete", "only administrators can delete courses")
	}

	if err := s.repo.Course().Delete(ctx, nil, id); err != nil {
		return mapNotFound(err, ErrCourseNotFound)
	}
	s.repo.Lesson().InvalidateCourse(ctx, id)

	s.logger.Info("Course deleted successfully", "course_id", id)
	return nil
}

func (s *courseService) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	exists, err := s.repo.Course().ExistsByID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}
	return s.repo.Lesson().GetByCourse(ctx, nil, courseID)
}

// ListCourses returns every course by name with its instructor's display
// name. An instructor the directory cannot resolve leaves the name empty.
func (s *courseService) ListCourses(ctx context.Context) ([]CourseSummary, error) {
	courses, err := s.repo.Course().List(ctx, nil)
	if err != nil {
		return nil, err
	}

	names := make(map[string]*string)
	summaries := make([]CourseSummary, len(courses))
	for i := range courses {
		summaries[i] = CourseSummary{Course: &courses[i]}

		instructorID := courses[i].InstructorID
		if instructorID == nil {
			continue
		}
		name, seen := names[*instructorID]
		if !seen {
			name = s.instructorName(ctx, *instructorID)
			names[*instructorID] = name
		}
		summaries[i].InstructorName = name
	}
	return summaries, nil
}

func (s *courseService) instructorName(ctx context.Context, userID string) *string {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("Failed to resolve course instructor", "user_id", userID, "error", err)
		}
		return nil
	}
	return &user.FullName
}

// UpdateCourseImage stores a new cover image and points the course at it.
// The previous image is removed once the row no longer references it.
func (s *courseService) UpdateCourseImage(ctx context.Context, id string, image io.Reader, contentType string, actor *models.User) (_ *models.Course, err error) {
	ctx, span := startSpan(ctx, "CourseService.UpdateCourseImage", attribute.String("course.id", id))
	defer func() { endSpan(span, err) }()

	ext, ok := courseImageTypes[contentType]
	if !ok {
		return nil, NewValidationError("image", "must be a PNG, JPEG or WebP image", contentType)
	}

	course, err := s.repo.Course().GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, ErrCourseNotFound)
	}
	if err := s.checkCourseOwnership(course, actor, "update"); err != nil {
		return nil, err
	}

	key := path.Join("courses", id, uuid.NewString()+ext)
	url, err := s.blobs.Put(ctx, key, image, contentType)
	if err != nil {
		s.logger.Error("Failed to store course image", "course_id", id, "error", err)
		return nil, fmt.Errorf("failed to store course image: %w", err)
	}

	previous := course.ImageURL
	course.ImageURL = &url
	if err := s.repo.Course().Update(ctx, nil, course); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove unreferenced course image", "key", key, "error", delErr)
		}
		return nil, mapNotFound(err, ErrCourseNotFound)
	}

	if previous != nil {
		s.deleteOwnedImage(ctx, *previous)
	}

	s.logger.Info("Course image updated", "course_id", id, "key", key)
	return course, nil
}

// deleteOwnedImage removes an image only when it lives in the blob store;
// externally hosted URLs are left alone.
func (s *courseService) deleteOwnedImage(ctx context.Context, url string) {
	base := s.blobs.URL("")
	if !strings.HasPrefix(url, base) {
		return
	}
	key := strings.TrimPrefix(url, base)
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("Failed to delete previous course image", "key", key, "error", err)
	}
}

// ===== NESTED COLLECTIONS =====

// reconcileLessons also reports the ids of the lessons it created
func (s *courseService) reconcileLessons(ctx context.Context, guard *txGuard, courseID string, existing []models.Lesson, desired models.Nested[LessonInput]) (ReconcileResult, []string, error) {
	var created []string

	result, err := Reconcile(ctx, s.reconciler, existing, desired, ReconcileOps[models.Lesson, LessonInput]{
		Kind: "lesson",
		DeleteExcept: func(ctx context.Context, keep []string) error {
			return guard.run(func(tx *gorm.DB) error {
				return s.repo.Lesson().DeleteByCourseExcept(ctx, tx, courseID, keep)
			})
		},
		Create: func(ctx context.Context, in LessonInput) (ReconcileResult, error) {
			lesson := &models.Lesson{CourseID: courseID}
			applyLesson(lesson, in)
			err := guard.run(func(tx *gorm.DB) error {
				if err := s.repo.Lesson().Create(ctx, tx, lesson); err != nil {
					return err
				}
				created = append(created, lesson.ID)
				return nil
			})
			if err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Created: 1}, nil
		},
		Update: func(ctx context.Context, current models.Lesson, in LessonInput) (ReconcileResult, error) {
			applyLesson(&current, in)
			err := guard.run(func(tx *gorm.DB) error {
				return s.repo.Lesson().Update(ctx, tx, &current)
			})
			if err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Updated: 1}, nil
		},
	})
	return result, created, err
}

func (s *courseService) reconcileMaterials(ctx context.Context, guard *txGuard, courseID string, existing []models.Material, desired models.Nested[MaterialInput]) (ReconcileResult, error) {
	return Reconcile(ctx, s.reconciler, existing, desired, ReconcileOps[models.Material, MaterialInput]{
		Kind: "material",
		DeleteExcept: func(ctx context.Context, keep []string) error {
			return guard.run(func(tx *gorm.DB) error {
				return s.repo.Material().DeleteByCourseExcept(ctx, tx, courseID, keep)
			})
		},
		Create: func(ctx context.Context, in MaterialInput) (ReconcileResult, error) {
			material := &models.Material{CourseID: courseID}
			applyMaterial(material, in)
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Material().Create(ctx, tx, material) }); err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Created: 1}, nil
		},
		Update: func(ctx context.Context, current models.Material, in MaterialInput) (ReconcileResult, error) {
			applyMaterial(&current, in)
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Material().Update(ctx, tx, &current) }); err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Updated: 1}, nil
		},
	})
}

// reconcileExams settles each exam row before reconciling its questions
func (s *courseService) reconcileExams(ctx context.Context, guard *txGuard, courseID string, existing []models.Exam, desired models.Nested[ExamInput]) (ReconcileResult, error) {
	return Reconcile(ctx, s.reconciler, existing, desired, ReconcileOps[models.Exam, ExamInput]{
		Kind: "exam",
		DeleteExcept: func(ctx context.Context, keep []string) error {
			return guard.run(func(tx *gorm.DB) error {
				return s.repo.Exam().DeleteByCourseExcept(ctx, tx, courseID, keep)
			})
		},
		Create: func(ctx context.Context, in ExamInput) (ReconcileResult, error) {
			exam := &models.Exam{CourseID: courseID, Title: in.Title, Description: in.Description}
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Exam().Create(ctx, tx, exam) }); err != nil {
				return ReconcileResult{}, err
			}
			result := ReconcileResult{Created: 1}
			children, err := s.reconcileQuestions(ctx, guard, exam.ID, nil, in.Questions)
			if err != nil {
				return ReconcileResult{}, err
			}
			result.Add(children)
			return result, nil
		},
		Update: func(ctx context.Context, current models.Exam, in ExamInput) (ReconcileResult, error) {
			current.Title = in.Title
			current.Description = in.Description
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Exam().Update(ctx, tx, &current) }); err != nil {
				return ReconcileResult{}, err
			}
			result := ReconcileResult{Updated: 1}
			children, err := s.reconcileQuestions(ctx, guard, current.ID, current.Questions, in.Questions)
			if err != nil {
				return ReconcileResult{}, err
			}
			result.Add(children)
			return result, nil
		},
	})
}

func (s *courseService) reconcileQuestions(ctx context.Context, guard *txGuard, examID string, existing []models.Question, desired models.Nested[QuestionInput]) (ReconcileResult, error) {
	return Reconcile(ctx, s.reconciler, existing, desired, ReconcileOps[models.Question, QuestionInput]{
		Kind: "question",
		DeleteExcept: func(ctx context.Context, keep []string) error {
			return guard.run(func(tx *gorm.DB) error {
				return s.repo.Question().DeleteByExamExcept(ctx, tx, examID, keep)
			})
		},
		Create: func(ctx context.Context, in QuestionInput) (ReconcileResult, error) {
			question := &models.Question{ExamID: examID, Prompt: in.Prompt, Position: in.Position}
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Question().Create(ctx, tx, question) }); err != nil {
				return ReconcileResult{}, err
			}
			result := ReconcileResult{Created: 1}
			children, err := s.reconcileOptions(ctx, guard, question.ID, nil, in.Options)
			if err != nil {
				return ReconcileResult{}, err
			}
			result.Add(children)
			return result, nil
		},
		Update: func(ctx context.Context, current models.Question, in QuestionInput) (ReconcileResult, error) {
			current.Prompt = in.Prompt
			current.Position = in.Position
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.Question().Update(ctx, tx, &current) }); err != nil {
				return ReconcileResult{}, err
			}
			result := ReconcileResult{Updated: 1}
			children, err := s.reconcileOptions(ctx, guard, current.ID, current.Options, in.Options)
			if err != nil {
				return ReconcileResult{}, err
			}
			result.Add(children)
			return result, nil
		},
	})
}

func (s *courseService) reconcileOptions(ctx context.Context, guard *txGuard, questionID string, existing []models.QuestionOption, desired models.Nested[OptionInput]) (ReconcileResult, error) {
	return Reconcile(ctx, s.reconciler, existing, desired, ReconcileOps[models.QuestionOption, OptionInput]{
		Kind: "option",
		DeleteExcept: func(ctx context.Context, keep []string) error {
			return guard.run(func(tx *gorm.DB) error {
				return s.repo.QuestionOption().DeleteByQuestionExcept(ctx, tx, questionID, keep)
			})
		},
		Create: func(ctx context.Context, in OptionInput) (ReconcileResult, error) {
			option := &models.QuestionOption{QuestionID: questionID, Answer: in.Answer, IsCorrect: in.IsCorrect, Position: in.Position}
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.QuestionOption().Create(ctx, tx, option) }); err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Created: 1}, nil
		},
		Update: func(ctx context.Context, current models.QuestionOption, in OptionInput) (ReconcileResult, error) {
			current.Answer = in.Answer
			current.IsCorrect = in.IsCorrect
			current.Position = in.Position
			if err := guard.run(func(tx *gorm.DB) error { return s.repo.QuestionOption().Update(ctx, tx, &current) }); err != nil {
				return ReconcileResult{}, err
			}
			return ReconcileResult{Updated: 1}, nil
		},
	})
}

// backfillProgress adds an unwatched progress row per registration for each new lesson
func (s *courseService) backfillProgress(ctx context.Context, tx *gorm.DB, courseID string, lessonIDs []string) error {
	if len(lessonIDs) == 0 {
		return nil
	}

	registrationIDs, err := s.repo.Registration().ListIDsByCourse(ctx, tx, courseID)
	if err != nil {
		return err
	}
	if len(registrationIDs) == 0 {
		return nil
	}

	rows := make([]models.LessonProgress, 0, len(registrationIDs)*len(lessonIDs))
	for _, registrationID := range registrationIDs {
		for _, lessonID := range lessonIDs {
			rows = append(rows, models.LessonProgress{RegistrationID: registrationID, LessonID: lessonID})
		}
	}

	s.logger.Info("Backfilling lesson progress", "course_id", courseID, "rows", len(rows))
	return s.repo.LessonProgress().CreateBatch(ctx, tx, rows)
}

// ===== HELPERS =====

func (s *courseService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *courseService) ensureInstructor(ctx context.Context, userID string) error {
	exists, err := s.repo.User().ExistsByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up instructor: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrInstructorNotFound, userID)
	}
	return nil
}

// checkCourseOwnership lets teachers change only the courses they teach
func (s *courseService) checkCourseOwnership(course *models.Course, actor *models.User, action string) error {
	if actor == nil || actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role == models.RoleTeacher && course.InstructorID != nil && *course.InstructorID == actor.ID {
		return nil
	}
	return NewPermissionError(actor.ID, course.ID, "course", action, "not the course instructor")
}

func applyCourseUpdate(course *models.Course, req *UpdateCourseRequest) {
	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Visible != nil {
		course.Visible = *req.Visible
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Audience != nil {
		course.Audience = *req.Audience
	}
	if req.Requirements != nil {
		course.Requirements = *req.Requirements
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Duration != nil {
		course.Duration = *req.Duration
	}
	if req.SupportHours != nil {
		course.SupportHours = *req.SupportHours
	}
	if req.InstructorID != nil {
		course.InstructorID = req.InstructorID
	}
	if req.ImageURL != nil {
		course.ImageURL = req.ImageURL
	}
}

func applyLesson(lesson *models.Lesson, in LessonInput) {
	lesson.Title = in.Title
	lesson.Description = in.Description
	lesson.Position = in.Position
	lesson.VideoURL = in.VideoURL
}

func applyMaterial(material *models.Material, in MaterialInput) {
	material.FileName = in.FileName
	material.MimeType = in.MimeType
	material.URL = in.URL
	material.Position = in.Position
}

// mapNotFound swaps a repository miss for a domain sentinel
func mapNotFound(err error, sentinel error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return sentinel
	}
	return err
}
