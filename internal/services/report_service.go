package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

const rosterSheet = "Roster"

var rosterHeader = []interface{}{
	"Student", "Email", "Registered", "Concluded", "Exam result", "Lessons watched", "Lessons total", "Certificate",
}

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

func (s *reportService) ExportCourseRoster(ctx context.Context, courseID string) ([]byte, error) {
	exists, err := s.repo.Course().ExistsByID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	registrations, err := s.repo.Registration().ListByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return nil, fmt.Errorf("failed to prepare sheet: %w", err)
	}
	if err := f.SetSheetRow(rosterSheet, "A1", &rosterHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(rosterSheet, "A1", "H1", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(rosterSheet, "A", "H", 22); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	for i, registration := range registrations {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := rosterRow(registration)
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.Info("Course roster exported", "course_id", courseID, "rows", len(registrations))
	return buf.Bytes(), nil
}

func rosterRow(r models.Registration) []interface{} {
	var name, email string
	if r.Student != nil {
		name, email = r.Student.Name, r.Student.Email
	}

	watched := 0
	for _, p := range r.LessonProgress {
		if p.WatchedAt != nil {
			watched++
		}
	}

	var result interface{} = ""
	if r.ExamResult != nil {
		result = *r.ExamResult
	}
	link := ""
	if r.DegreeLink != nil && r.DegreeCode != nil {
		link = *r.DegreeLink
	}

	return []interface{}{
		name,
		email,
		formatDate(&r.RegisterDate),
		formatDate(r.ConclusionDate),
		result,
		watched,
		len(r.LessonProgress),
		link,
	}
}

func formatDate(d *datatypes.Date) string {
	if d == nil {
		return ""
	}
	return time.Time(*d).Format(validator.DateLayout)
}
