package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	return &BusinessValidator{validate: validate}
}

// Validate validates struct tags for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateCourseCreate validates a course payload and every nested item in it
func (bv *BusinessValidator) ValidateCourseCreate(req *CourseCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.Price.IsNegative() {
		errors = append(errors, ValidationError{
			Field:   "price",
			Message: "must not be negative",
			Value:   req.Price.String(),
			Rule:    "non_negative_price",
		})
	}

	errors = append(errors, bv.validateLessons("lessons", models.ReplaceWith(req.Lessons...), false)...)
	errors = append(errors, bv.validateExams("exams", models.ReplaceWith(req.Exams...), false)...)
	errors = append(errors, bv.validateMaterials("materials", models.ReplaceWith(req.Materials...), false)...)

	return errors
}

// ValidateCourseUpdate validates scalar changes and the nested collections being replaced
func (bv *BusinessValidator) ValidateCourseUpdate(req *CourseUpdateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.Price != nil && req.Price.IsNegative() {
		errors = append(errors, ValidationError{
			Field:   "price",
			Message: "must not be negative",
			Value:   req.Price.String(),
			Rule:    "non_negative_price",
		})
	}

	errors = append(errors, bv.validateLessons("lessons", req.Lessons, true)...)
	errors = append(errors, bv.validateExams("exams", req.Exams, true)...)
	errors = append(errors, bv.validateMaterials("materials", req.Materials, true)...)

	return errors
}

func (bv *BusinessValidator) validateLessons(path string, lessons models.Nested[LessonInput], structCheck bool) ValidationErrors {
	var errors ValidationErrors
	positions := make([]int, 0, len(lessons.Items()))
	keys := make([]string, 0, len(lessons.Items()))

	for i, lesson := range lessons.Items() {
		if structCheck {
			errors = append(errors, bv.validateItem(fmt.Sprintf("%s[%d]", path, i), lesson)...)
		}
		positions = append(positions, lesson.Position)
		keys = append(keys, lesson.Key())
	}

	errors = append(errors, uniquePositions(path, positions)...)
	errors = append(errors, uniqueKeys(path, keys)...)
	return errors
}

func (bv *BusinessValidator) validateMaterials(path string, materials models.Nested[MaterialInput], structCheck bool) ValidationErrors {
	var errors ValidationErrors
	keys := make([]string, 0, len(materials.Items()))

	for i, material := range materials.Items() {
		if structCheck {
			errors = append(errors, bv.validateItem(fmt.Sprintf("%s[%d]", path, i), material)...)
		}
		keys = append(keys, material.Key())
	}

	errors = append(errors, uniqueKeys(path, keys)...)
	return errors
}

func (bv *BusinessValidator) validateExams(path string, exams models.Nested[ExamInput], structCheck bool) ValidationErrors {
	var errors ValidationErrors
	keys := make([]string, 0, len(exams.Items()))

	for i, exam := range exams.Items() {
		examPath := fmt.Sprintf("%s[%d]", path, i)
		if structCheck {
			errors = append(errors, bv.validateItem(examPath, exam)...)
		}
		keys = append(keys, exam.Key())
		errors = append(errors, bv.validateQuestions(examPath+".questions", exam.Questions)...)
	}

	errors = append(errors, uniqueKeys(path, keys)...)
	return errors
}

func (bv *BusinessValidator) validateQuestions(path string, questions models.Nested[QuestionInput]) ValidationErrors {
	var errors ValidationErrors
	positions := make([]int, 0, len(questions.Items()))
	keys := make([]string, 0, len(questions.Items()))

	for i, question := range questions.Items() {
		questionPath := fmt.Sprintf("%s[%d]", path, i)
		errors = append(errors, bv.validateItem(questionPath, question)...)
		positions = append(positions, question.Position)
		keys = append(keys, question.Key())
		errors = append(errors, bv.validateOptions(questionPath+".options", question.Options)...)
	}

	errors = append(errors, uniquePositions(path, positions)...)
	errors = append(errors, uniqueKeys(path, keys)...)
	return errors
}

// validateOptions requires at least one correct option whenever a
// question's options are submitted.
func (bv *BusinessValidator) validateOptions(path string, options models.Nested[OptionInput]) ValidationErrors {
	if !options.IsSet() {
		return nil
	}

	var errors ValidationErrors
	positions := make([]int, 0, len(options.Items()))
	keys := make([]string, 0, len(options.Items()))
	hasCorrect := false

	for i, option := range options.Items() {
		errors = append(errors, bv.validateItem(fmt.Sprintf("%s[%d]", path, i), option)...)
		positions = append(positions, option.Position)
		keys = append(keys, option.Key())
		hasCorrect = hasCorrect || option.IsCorrect
	}

	if !hasCorrect {
		errors = append(errors, ValidationError{
			Field:   path,
			Message: "at least one option must be marked correct",
			Value:   len(options.Items()),
			Rule:    "correct_option_required",
		})
	}

	errors = append(errors, uniquePositions(path, positions)...)
	errors = append(errors, uniqueKeys(path, keys)...)
	return errors
}

func (bv *BusinessValidator) validateItem(path string, item interface{}) ValidationErrors {
	errs := bv.Validate(item)
	for i := range errs {
		errs[i].Field = path + "." + errs[i].Field
	}
	return errs
}

func uniquePositions(path string, positions []int) ValidationErrors {
	var errors ValidationErrors
	seen := make(map[int]int, len(positions))
	for i, p := range positions {
		if first, dup := seen[p]; dup {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d].order", path, i),
				Message: fmt.Sprintf("duplicates the order of %s[%d]", path, first),
				Value:   p,
				Rule:    "unique_order",
			})
			continue
		}
		seen[p] = i
	}
	return errors
}

func uniqueKeys(path string, keys []string) ValidationErrors {
	var errors ValidationErrors
	seen := make(map[string]struct{}, len(keys))
	for i, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d].id", path, i),
				Message: "appears more than once",
				Value:   k,
				Rule:    "unique_id",
			})
			continue
		}
		seen[k] = struct{}{}
	}
	return errors
}
