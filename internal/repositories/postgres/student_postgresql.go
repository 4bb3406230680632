package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type StudentPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewStudentPostgreSQL(db *gorm.DB) repositories.StudentRepository {
	return &StudentPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *StudentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	if err := s.helpers.conn(ctx, tx).Omit(clause.Associations).Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

func (s *StudentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error) {
	var student models.Student
	if err := s.helpers.conn(ctx, tx).First(&student, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "student")
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Student, error) {
	var student models.Student
	if err := s.helpers.conn(ctx, tx).First(&student, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "student")
	}
	return &student, nil
}

func (s *StudentPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	return s.helpers.Exists(ctx, tx, &models.Student{}, "id = ?", id)
}

type TicketPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewTicketPostgreSQL(db *gorm.DB) repositories.TicketRepository {
	return &TicketPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (t *TicketPostgreSQL) Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error {
	if err := t.helpers.conn(ctx, tx).Omit(clause.Associations).Create(ticket).Error; err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (t *TicketPostgreSQL) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := t.helpers.conn(ctx, tx).First(&ticket, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticket, nil
}

func (t *TicketPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := t.helpers.conn(ctx, tx).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "ticket")
	}
	return &ticket, nil
}

// MarkUsed is a conditional update so two concurrent redemptions cannot both win
func (t *TicketPostgreSQL) MarkUsed(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	result := t.helpers.conn(ctx, tx).
		Model(&models.Ticket{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark ticket used: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
