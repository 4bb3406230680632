package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// Validation errors come from the validator package
type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

var (
	ErrValidationFailed = errors.New("validation failed")

	// ErrNotFound is shared with the repositories so lookups propagate unchanged
	ErrNotFound = repositories.ErrNotFound

	ErrCourseNotFound       = fmt.Errorf("course %w", repositories.ErrNotFound)
	ErrStudentNotFound      = fmt.Errorf("student %w", repositories.ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("registration %w", repositories.ErrNotFound)
	ErrInstructorNotFound   = fmt.Errorf("instructor %w", repositories.ErrNotFound)
	ErrCertificateNotFound  = fmt.Errorf("certificate %w", repositories.ErrNotFound)

	ErrAlreadyEnrolled    = errors.New("student already enrolled in course")
	ErrTicketNotFound     = errors.New("coupon does not exist")
	ErrTicketNotValid     = errors.New("coupon no longer valid")
	ErrNestedItemNotFound = errors.New("nested item not found")

	ErrTemplateUnavailable = certificate.ErrTemplateUnavailable
)

// BusinessRuleError is a domain rule violation with a machine readable rule id
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	err     error
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// wrapBusinessRule attaches a sentinel so callers can match with errors.Is
func wrapBusinessRule(sentinel error, rule string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: sentinel.Error(), Context: context, err: sentinel}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s: %s", e.Rule, e.Message)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.err
}

// PermissionError reports an action the user may not perform on a resource
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// NewValidationError builds a single-field ValidationErrors
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value}}
}

// validate runs struct validation and normalizes the result
func validate(v *validator.Validator, req interface{}) error {
	if err := v.Validate(req); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return verrs
		}
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}
