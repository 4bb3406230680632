package repositories

import (
	"context"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
)

// UserRepository reads staff identities (enrollment service is not owner of user data)
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
