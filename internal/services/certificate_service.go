package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// DocumentRenderer turns a template and a document into PDF bytes
type DocumentRenderer interface {
	Render(template []byte, doc certificate.Document) ([]byte, error)
}

type certificateService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	templates certificate.TemplateSource
	renderer  DocumentRenderer
	blobs     storage.BlobStore
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	newCode   func() (string, error)
}

func NewCertificateService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	templates certificate.TemplateSource,
	renderer DocumentRenderer,
	blobs storage.BlobStore,
	publisher events.EventPublisher,
	m *metrics.Metrics,
) CertificateService {
	return &certificateService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		templates: templates,
		renderer:  renderer,
		blobs:     blobs,
		publisher: publisher,
		metrics:   m,
		newCode:   certificate.GenerateCode,
	}
}

// FinishCourse renders and stores the completion certificate, then records
// it on the registration. The code is reserved as pending before the upload
// and only promoted once the document is stored; a failed promotion deletes
// the stored document again.
func (s *certificateService) FinishCourse(ctx context.Context, registrationID string, req *FinishCourseRequest) (_ *CertificateResponse, err error) {
	ctx, span := startSpan(ctx, "CertificateService.FinishCourse", attribute.String("registration.id", registrationID))
	defer func() { endSpan(span, err) }()

	s.logger.Info("Finishing course", "registration_id", registrationID)

	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	conclusion, err := time.Parse(validator.DateLayout, req.ConclusionDate)
	if err != nil {
		return nil, NewValidationError("conclusion_date", "must be a date in format "+validator.DateLayout, req.ConclusionDate)
	}

	registration, err := s.repo.Registration().GetWithStudentAndCourse(ctx, nil, registrationID)
	if err != nil {
		return nil, mapNotFound(err, ErrRegistrationNotFound)
	}

	template, err := s.templates.Fetch(ctx)
	if err != nil {
		s.metrics.CertificateFailed("template")
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate validation code: %w", err)
	}

	pdf, err := s.renderer.Render(template, certificate.Document{
		StudentName:    registration.Student.Name,
		CourseName:     registration.Course.Name,
		Duration:       registration.Course.Duration,
		ConclusionDate: conclusion,
		Code:           code,
	})
	if err != nil {
		stage := "render"
		if errors.Is(err, certificate.ErrTemplateUnavailable) {
			stage = "template"
		}
		s.metrics.CertificateFailed(stage)
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	var stale *string
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		var err error
		stale, err = s.repo.Registration().MarkDegreePending(ctx, tx, registrationID, code)
		return err
	})
	if err != nil {
		return nil, mapNotFound(err, ErrRegistrationNotFound)
	}
	if stale != nil {
		s.discardStaleReservation(ctx, registrationID, *stale)
	}

	link, err := s.blobs.Put(ctx, code, bytes.NewReader(pdf), certificate.ContentType)
	if err != nil {
		s.metrics.CertificateFailed("upload")
		if clearErr := s.repo.Registration().ClearDegreePending(ctx, nil, registrationID, code); clearErr != nil {
			s.logger.Error("Failed to clear pending certificate", "registration_id", registrationID, "code", code, "error", clearErr)
		}
		return nil, fmt.Errorf("failed to store certificate: %w", err)
	}

	examResult := *req.ExamResult
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.Registration().IssueDegree(ctx, tx, registrationID, repositories.DegreeIssue{
			Code:           code,
			Link:           link,
			ExamResult:     examResult,
			ConclusionDate: conclusion,
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			return fmt.Errorf("certificate %s was superseded before it could be issued", code)
		}
		return nil
	})
	if err != nil {
		s.metrics.CertificateFailed("issue")
		if delErr := s.blobs.Delete(ctx, code); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			s.logger.Error("Failed to delete orphaned certificate, left pending for cleanup",
				"registration_id", registrationID, "code", code, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record certificate: %w", err)
	}

	if previous := registration.DegreeCode; previous != nil && *previous != code {
		if err := s.blobs.Delete(ctx, *previous); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("Failed to delete replaced certificate", "registration_id", registrationID, "code", *previous, "error", err)
		}
	}

	s.metrics.CertificateIssued()
	if err := s.publisher.PublishCertificateIssued(ctx, events.CertificateIssuedEvent{
		RegistrationID: registrationID,
		StudentID:      registration.StudentID,
		CourseID:       registration.CourseID,
		Code:           code,
		Link:           link,
		ExamResult:     examResult,
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to publish certificate event", "registration_id", registrationID, "error", err)
	}

	s.logger.Info("Certificate issued", "registration_id", registrationID, "code", code)
	return &CertificateResponse{
		RegistrationID: registrationID,
		Code:           code,
		Link:           link,
		ExamResult:     examResult,
		ConclusionDate: conclusion.Format(validator.DateLayout),
		Status:         models.DegreeIssued,
	}, nil
}

// discardStaleReservation removes the document of a reservation that was
// replaced before being issued. It can no longer be promoted, so whoever
// stored it, a crashed finish or one still running, has left it orphaned.
func (s *certificateService) discardStaleReservation(ctx context.Context, registrationID, code string) {
	s.logger.Warn("Replacing unissued certificate reservation", "registration_id", registrationID, "stale_code", code)
	if err := s.blobs.Delete(ctx, code); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Error("Failed to delete stale certificate", "registration_id", registrationID, "code", code, "error", err)
	}
}

func (s *certificateService) VerifyCertificate(ctx context.Context, code string) (*CertificateVerification, error) {
	registration, err := s.repo.Registration().GetByDegreeCode(ctx, nil, code)
	if err != nil {
		return nil, mapNotFound(err, ErrCertificateNotFound)
	}

	out := &CertificateVerification{
		Code:       code,
		ExamResult: registration.ExamResult,
		IssuedAt:   registration.UpdatedAt,
	}
	if registration.Student != nil {
		out.StudentName = registration.Student.Name
	}
	if registration.Course != nil {
		out.CourseName = registration.Course.Name
		out.Duration = registration.Course.Duration
	}
	if registration.ConclusionDate != nil {
		out.ConclusionDate = time.Time(*registration.ConclusionDate).Format(validator.DateLayout)
	}
	if registration.DegreeLink != nil {
		out.Link = *registration.DegreeLink
	}
	return out, nil
}

func (s *certificateService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
